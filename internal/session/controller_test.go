package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qbwc-webhook-adapter/internal/auth"
	"qbwc-webhook-adapter/internal/models"
)

type stubRequests struct {
	payload string
	err     error
}

func (s stubRequests) NextRequest(context.Context) (string, error) { return s.payload, s.err }

type collectingSubmitter struct{ jobs []models.Job }

func (c *collectingSubmitter) Submit(job models.Job) { c.jobs = append(c.jobs, job) }

func newController(req RequestSource, sub Submitter) *Controller {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewController(Config{}, auth.Credentials{Username: "qb", Password: "pw"}, req, sub, logger)
}

func TestStaticOperations(t *testing.T) {
	c := newController(stubRequests{}, &collectingSubmitter{})

	assert.Equal(t, "1.0", c.ServerVersion())
	assert.Equal(t, "1.0", c.ClientVersion("2.3.0.1"))
	assert.Equal(t, "OK", c.CloseConnection())
	assert.Equal(t, "", c.GetLastError())
	assert.Equal(t, "done", c.ConnectionError("0x80040408", "could not start"))
}

func TestAuthenticate(t *testing.T) {
	c := newController(stubRequests{}, &collectingSubmitter{})

	ok := c.Authenticate("qb", "pw")
	require.Len(t, ok, 2)
	assert.NotEmpty(t, ok[0])
	assert.Equal(t, c.Ticket(), ok[0])
	assert.Equal(t, "", ok[1], "empty company file means the open one")
	assert.Equal(t, ok, c.Authenticate("qb", "pw"), "ticket is stable for the controller")

	assert.Equal(t, []string{"", "nvu"}, c.Authenticate("qb", "bad"))
}

func TestSendRequest(t *testing.T) {
	c := newController(stubRequests{payload: "<QBXML/>"}, &collectingSubmitter{})
	got, err := c.SendRequest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<QBXML/>", got)

	storeErr := errors.New("queue unreadable")
	c = newController(stubRequests{err: storeErr}, &collectingSubmitter{})
	_, err = c.SendRequest(context.Background())
	assert.ErrorIs(t, err, storeErr)
}

func TestReceiveResponse(t *testing.T) {
	const answer = `<QBXML><QBXMLMsgsRs><InvoiceQueryRs statusCode="0"/></QBXMLMsgsRs></QBXML>`

	testCases := []struct {
		name      string
		response  string
		hresult   string
		message   string
		submitted int
	}{
		{name: "valid answer", response: answer, submitted: 1},
		{name: "valid answer with connector error", response: answer, hresult: "0x8004", message: "warn", submitted: 1},
		{name: "malformed answer", response: "<QBXML><oops", submitted: 0},
		{name: "empty answer", response: "", hresult: "0x80040400", message: "failed", submitted: 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sub := &collectingSubmitter{}
			c := newController(stubRequests{}, sub)

			progress := c.ReceiveResponse(context.Background(), tc.response, tc.hresult, tc.message)

			assert.Equal(t, 100, progress)
			require.Len(t, sub.jobs, tc.submitted)
			if tc.submitted > 0 {
				assert.Equal(t, tc.response, sub.jobs[0].Raw)
				assert.True(t, sub.jobs[0].Answer.HasResponse("InvoiceQueryRs"))
				assert.False(t, sub.jobs[0].ReceivedAt.IsZero())
			}
		})
	}
}
