package soap

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	sendPayload string
	sendErr     error

	gotUser, gotPass   string
	gotResponse        string
	gotHResult, gotMsg string
	receiveCalls       int
}

func (f *fakeService) ServerVersion() string       { return "1.0" }
func (f *fakeService) ClientVersion(string) string { return "" }
func (f *fakeService) CloseConnection() string     { return "OK" }
func (f *fakeService) GetLastError() string        { return "" }

func (f *fakeService) ConnectionError(hresult, message string) string {
	f.gotHResult, f.gotMsg = hresult, message
	return "done"
}

func (f *fakeService) SendRequest(context.Context) (string, error) {
	return f.sendPayload, f.sendErr
}

func (f *fakeService) Authenticate(u, p string) []string {
	f.gotUser, f.gotPass = u, p
	if u == "qb" && p == "pw" {
		return []string{"ticket-1", ""}
	}
	return []string{"", "nvu"}
}

func (f *fakeService) ReceiveResponse(_ context.Context, response, hresult, message string) int {
	f.receiveCalls++
	f.gotResponse, f.gotHResult, f.gotMsg = response, hresult, message
	return 100
}

func envelopeFor(body string) string {
	return `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema">
<soap:Body>` + body + `</soap:Body></soap:Envelope>`
}

// parsedResponse is what a client sees in the response body.
type parsedResponse struct {
	Body struct {
		Inner string `xml:",innerxml"`
		Fault *struct {
			Code   string `xml:"faultcode"`
			String string `xml:"faultstring"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

func soapCall(t *testing.T, svc Service, body string) (*httptest.ResponseRecorder, parsedResponse) {
	t.Helper()
	h := NewHandler(svc, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	req := httptest.NewRequest(http.MethodPost, "/soap", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var parsed parsedResponse
	require.NoError(t, xml.Unmarshal(rr.Body.Bytes(), &parsed), rr.Body.String())
	return rr, parsed
}

func TestOperations(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "serverVersion",
			body:     `<serverVersion xmlns="http://developer.intuit.com/"/>`,
			expected: `<serverVersionResult>1.0</serverVersionResult>`,
		},
		{
			name:     "authenticate success",
			body:     `<authenticate xmlns="http://developer.intuit.com/"><strUserName>qb</strUserName><strPassword>pw</strPassword></authenticate>`,
			expected: `<authenticateResult><string>ticket-1</string><string></string></authenticateResult>`,
		},
		{
			name:     "authenticate failure",
			body:     `<authenticate xmlns="http://developer.intuit.com/"><strUserName>qb</strUserName><strPassword>x</strPassword></authenticate>`,
			expected: `<authenticateResult><string></string><string>nvu</string></authenticateResult>`,
		},
		{
			name:     "sendRequestXML escapes the payload",
			body:     `<sendRequestXML xmlns="http://developer.intuit.com/"><ticket>t</ticket><qbXMLMajorVers>13</qbXMLMajorVers></sendRequestXML>`,
			expected: `<sendRequestXMLResult>&lt;QBXML/&gt;</sendRequestXMLResult>`,
		},
		{
			name:     "receiveResponseXML",
			body:     `<receiveResponseXML xmlns="http://developer.intuit.com/"><ticket>t</ticket><response>&lt;QBXML/&gt;</response><hresult></hresult><message></message></receiveResponseXML>`,
			expected: `<receiveResponseXMLResult>100</receiveResponseXMLResult>`,
		},
		{
			name:     "closeConnection",
			body:     `<closeConnection xmlns="http://developer.intuit.com/"><ticket>t</ticket></closeConnection>`,
			expected: `<closeConnectionResult>OK</closeConnectionResult>`,
		},
		{
			name:     "getLastError",
			body:     `<getLastError xmlns="http://developer.intuit.com/"><ticket>t</ticket></getLastError>`,
			expected: `<getLastErrorResult></getLastErrorResult>`,
		},
		{
			name:     "connectionError",
			body:     `<connectionError xmlns="http://developer.intuit.com/"><ticket>t</ticket><hresult>0x8004</hresult><message>down</message></connectionError>`,
			expected: `<connectionErrorResult>done</connectionErrorResult>`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{sendPayload: "<QBXML/>"}
			rr, parsed := soapCall(t, svc, envelopeFor(tc.body))

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "text/xml; charset=utf-8", rr.Header().Get("Content-Type"))
			assert.Nil(t, parsed.Body.Fault)
			assert.Contains(t, parsed.Body.Inner, tc.expected)
			assert.Contains(t, parsed.Body.Inner, `xmlns="http://developer.intuit.com/"`)
		})
	}
}

func TestReceiveResponsePassesArguments(t *testing.T) {
	svc := &fakeService{}
	body := `<tns:receiveResponseXML xmlns:tns="http://developer.intuit.com/">
		<tns:ticket>t</tns:ticket>
		<tns:response><![CDATA[<QBXML><QBXMLMsgsRs/></QBXML>]]></tns:response>
		<tns:hresult>0x80040400</tns:hresult>
		<tns:message>warning</tns:message>
	</tns:receiveResponseXML>`

	rr, _ := soapCall(t, svc, envelopeFor(body))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, svc.receiveCalls)
	assert.Equal(t, "<QBXML><QBXMLMsgsRs/></QBXML>", svc.gotResponse)
	assert.Equal(t, "0x80040400", svc.gotHResult)
	assert.Equal(t, "warning", svc.gotMsg)
}

func TestFaults(t *testing.T) {
	testCases := []struct {
		name     string
		svc      *fakeService
		body     string
		wantCode string
	}{
		{
			name:     "unknown operation",
			svc:      &fakeService{},
			body:     envelopeFor(`<deleteEverything xmlns="http://developer.intuit.com/"/>`),
			wantCode: "soap:Client",
		},
		{
			name:     "not an envelope",
			svc:      &fakeService{},
			body:     `<hello/>`,
			wantCode: "soap:Client",
		},
		{
			name:     "empty body",
			svc:      &fakeService{},
			body:     envelopeFor(``),
			wantCode: "soap:Client",
		},
		{
			name:     "queue failure",
			svc:      &fakeService{sendErr: errors.New("queue corrupt")},
			body:     envelopeFor(`<sendRequestXML xmlns="http://developer.intuit.com/"><ticket>t</ticket></sendRequestXML>`),
			wantCode: "soap:Server",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr, parsed := soapCall(t, tc.svc, tc.body)

			assert.Equal(t, http.StatusInternalServerError, rr.Code)
			require.NotNil(t, parsed.Body.Fault)
			assert.Equal(t, tc.wantCode, parsed.Body.Fault.Code)
			assert.NotEmpty(t, parsed.Body.Fault.String)
		})
	}
}

func TestServesWSDL(t *testing.T) {
	h := NewHandler(&fakeService{}, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/soap?wsdl", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="receiveResponseXML"`)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/soap", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
