package httphandler

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/francistor/gy/constants"
	"github.com/francistor/gy/core"

	"golang.org/x/net/http2"
)

// Creates an http client suitable for sending requests to the handler, that is,
// using http2 and ignoring the verification of the (self-signed) certificate
func NewHttp2Client(timeoutSeconds int) http.Client {
	return http.Client{
		Timeout: time.Duration(timeoutSeconds) * time.Second,
		Transport: &http2.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		},
	}
}

// Helper function to serialize, send request, get response and unserialize Diameter Request
func HttpDiameterRequest(client http.Client, endpoint string, diameterRequest *core.DiameterMessage) (*core.DiameterMessage, error) {

	// Serialize the message
	jsonRequest, err := json.Marshal(diameterRequest)
	if err != nil {
		core.RecordHttpClientExchange(endpoint, constants.SERIALIZATION_ERROR)
		return nil, fmt.Errorf("unable to marshal message to json %s", err)
	}

	// Send the request to the Handler
	httpResp, err := client.Post(endpoint, "application/json", bytes.NewReader(jsonRequest))
	if err != nil {
		core.RecordHttpClientExchange(endpoint, constants.NETWORK_ERROR)
		return nil, fmt.Errorf("handler %s error %s", endpoint, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != 200 {
		core.RecordHttpClientExchange(endpoint, constants.HTTP_RESPONSE_ERROR)
		return nil, fmt.Errorf("handler %s returned status code %d", endpoint, httpResp.StatusCode)
	}

	jsonAnswer, err := io.ReadAll(httpResp.Body)
	if err != nil {
		core.RecordHttpClientExchange(endpoint, constants.NETWORK_ERROR)
		return nil, fmt.Errorf("error reading response from %s: %s", endpoint, err)
	}

	// Unserialize to Diameter Message
	var diameterAnswer core.DiameterMessage
	err = json.Unmarshal(jsonAnswer, &diameterAnswer)
	if err != nil {
		core.RecordHttpClientExchange(endpoint, constants.UNSERIALIZATION_ERROR)
		return nil, fmt.Errorf("error unmarshaling response from %s: %s", endpoint, err)
	}
	diameterAnswer.Tidy()

	core.RecordHttpClientExchange(endpoint, constants.SUCCESS)
	return &diameterAnswer, nil
}
