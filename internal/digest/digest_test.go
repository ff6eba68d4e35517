package digest

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnellens/funnellens/internal/domain"
	"github.com/funnellens/funnellens/internal/service/recommendation"
)

func testReport() *recommendation.Report {
	return &recommendation.Report{
		CreatorID:  "c1",
		PeriodDays: 30,
		TotalSubs:  42,
		Recommendations: []recommendation.Recommendation{
			{ContentType: domain.ContentStorytime, Action: recommendation.ActionIncrease, Tier: "confident", LiftPct: 80},
			{ContentType: domain.ContentMoneyTalk, Action: recommendation.ActionDecrease, Tier: "confident", LiftPct: -30},
			{ContentType: domain.ContentGRWM, Action: recommendation.ActionMaintain, Tier: "hypothesis", LiftPct: 5},
		},
	}
}

func TestRender(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	msg, err := r.Render(domain.Creator{Name: "Ava", NotificationEmail: "mgr@agency.test"}, testReport())
	require.NoError(t, err)

	assert.Equal(t, "mgr@agency.test", msg.To)
	assert.Equal(t, "Ava: post more Storytime", msg.Subject)
	assert.Contains(t, msg.Text, "Hi Ava,")
	assert.Contains(t, msg.Text, "Do more: Storytime")
	assert.Contains(t, msg.Text, "Do less: Money / Income")
	assert.NotContains(t, msg.Text, "Worth testing")
	assert.Contains(t, msg.HTML, "<strong>Do more:</strong> Storytime")
}

func TestRender_NoActions(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	msg, err := r.Render(domain.Creator{Name: "Bo"}, &recommendation.Report{CreatorID: "c2", PeriodDays: 14})
	require.NoError(t, err)
	assert.Equal(t, "Bo: your 14-day content report", msg.Subject)
	assert.Empty(t, msg.To)
}

func TestRender_EscapesHTML(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	msg, err := r.Render(domain.Creator{Name: "<b>Eve</b>"}, testReport())
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "&lt;b&gt;Eve&lt;/b&gt;")
}

type fakeSES struct {
	in  *sesv2.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender(t *testing.T) {
	fake := &fakeSES{}
	s := &SESSender{client: fake, from: "digest@funnellens.test"}

	id, err := s.Send(context.Background(), &Message{To: "mgr@agency.test", Subject: "s", Text: "t", HTML: "h"})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	assert.Equal(t, "digest@funnellens.test", aws.ToString(fake.in.FromEmailAddress))
	assert.Equal(t, []string{"mgr@agency.test"}, fake.in.Destination.ToAddresses)
	assert.Equal(t, "t", aws.ToString(fake.in.Content.Simple.Body.Text.Data))
}

func TestSESSender_Errors(t *testing.T) {
	s := &SESSender{client: &fakeSES{}, from: "x@y.test"}
	_, err := s.Send(context.Background(), &Message{})
	assert.ErrorIs(t, err, ErrNoRecipient)

	boom := errors.New("throttled")
	s = &SESSender{client: &fakeSES{err: boom}, from: "x@y.test"}
	_, err = s.Send(context.Background(), &Message{To: "a@b.test"})
	assert.ErrorIs(t, err, boom)
}
