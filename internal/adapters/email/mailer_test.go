package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESMailer_Send(t *testing.T) {
	client := &fakeSES{}
	m := &sesMailer{client: client, source: formatSource("Sunnyside", "hello@sunnyside.test"), logger: testLogger}

	require.NoError(t, m.Send("guest@example.com", "Subject", "<p>hi</p>", ""))

	require.NotNil(t, client.input)
	assert.Equal(t, "Sunnyside <hello@sunnyside.test>", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"guest@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "Subject", aws.ToString(client.input.Message.Subject.Data))
	require.NotNil(t, client.input.Message.Body.Html)
	assert.Nil(t, client.input.Message.Body.Text)
}

func TestSESMailer_Send_error(t *testing.T) {
	m := &sesMailer{client: &fakeSES{err: errors.New("throttled")}, source: "hello@sunnyside.test", logger: testLogger}

	err := m.Send("guest@example.com", "Subject", "", "hi")
	assert.ErrorContains(t, err, "throttled")
}

func TestNewMailer_fallsBackToNoop(t *testing.T) {
	for _, provider := range []string{"noop", "carrier-pigeon", ""} {
		m := NewMailer(MailerConfig{Provider: provider}, testLogger)
		_, ok := m.(*noopMailer)
		assert.True(t, ok, "provider %q", provider)
		assert.NoError(t, m.Send("a@b.c", "s", "h", "t"))
	}
}

func TestFormatSource(t *testing.T) {
	assert.Equal(t, "a@b.c", formatSource("", "a@b.c"))
	assert.Equal(t, "Bob <a@b.c>", formatSource("Bob", "a@b.c"))
}
