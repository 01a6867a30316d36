package push

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-notify-nosql/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(CodeNotRegistered))
	assert.True(t, IsPermanent(CodeInvalidToken))
	assert.True(t, IsPermanent(CodeInvalidArgument))
	assert.False(t, IsPermanent(CodeInternal))
	assert.False(t, IsPermanent(""))
}

func TestNew_NoPlatformARN_ReturnsStub(t *testing.T) {
	d := New(&config.Config{}, discardLogger())
	_, ok := d.(*Stub)
	assert.True(t, ok)
}

func TestClassify_EndpointErrors_ArePerToken(t *testing.T) {
	code, callLevel := classify(&types.EndpointDisabledException{})
	assert.Equal(t, CodeNotRegistered, code)
	assert.False(t, callLevel)

	code, callLevel = classify(&types.InvalidParameterException{})
	assert.Equal(t, CodeInvalidArgument, code)
	assert.False(t, callLevel)

	code, callLevel = classify(&types.NotFoundException{})
	assert.Equal(t, CodeInvalidToken, code)
	assert.False(t, callLevel)
}

// A failure that says nothing about the individual endpoint must fail the
// dispatch as a whole, never be recorded as a per-token outcome.
func TestClassify_UnrecognizedErrors_AreCallLevel(t *testing.T) {
	cases := []error{
		&net.OpError{Op: "dial", Err: errors.New("connection refused")},
		context.Canceled,
		&types.AuthorizationErrorException{},
		errors.New("throttled"),
	}
	for _, err := range cases {
		_, callLevel := classify(err)
		assert.True(t, callLevel, "expected call-level for %v", err)
	}
}

func TestStub_AllTokensSucceed(t *testing.T) {
	s := NewStub(discardLogger())
	results, err := s.SendMulticast(context.Background(), Message{Title: "hi", Body: "there"}, []string{"t1", "t2"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Success)
		assert.Empty(t, r.ErrorCode)
	}
}
