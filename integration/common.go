package integration

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/oliveagle/jsonpath"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	didint "github.com/tbd54566975/issuer-service/internal/did"
	"github.com/tbd54566975/issuer-service/internal/util"
	"github.com/tbd54566975/issuer-service/pkg/server/router"
)

const (
	// EndpointEnv overrides the address of the service under test.
	EndpointEnv     = "INTEGRATION_ENDPOINT"
	defaultEndpoint = "http://localhost:3000/"
	version         = "v1/"
	MaxElapsedTime  = 120 * time.Second
)

var (
	//go:embed testdata
	testVectors embed.FS
	client      = &http.Client{Timeout: 90 * time.Second}
	endpoint    = getEndpoint()
)

func init() {
	// Treats "\n" as new lines, see https://github.com/sirupsen/logrus/issues/608
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableQuote: true,
		ForceColors:  true,
	})
}

func getEndpoint() string {
	if e, ok := os.LookupEnv(EndpointEnv); ok && e != "" {
		return strings.TrimSuffix(e, "/") + "/"
	}
	return defaultEndpoint
}

// WaitForService polls the health endpoint until the service answers.
func WaitForService() error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = MaxElapsedTime
	return backoff.Retry(func() error {
		_, err := get(endpoint + "health")
		if err != nil {
			logrus.WithError(err).Info("waiting for service")
		}
		return err
	}, b)
}

type issuerParams struct {
	Domain string
}

func CreateIssuer(params issuerParams) (*router.IssuerResponse, error) {
	logrus.Println("\n\nCreate an issuer:")
	input, err := resolveTemplate(params, "issuer-input.json")
	if err != nil {
		return nil, err
	}
	output, err := put(endpoint+version+"issuers", input)
	if err != nil {
		return nil, errors.Wrapf(err, "issuer endpoint with output: %s", output)
	}
	var resp router.IssuerResponse
	if err = json.Unmarshal([]byte(output), &resp); err != nil {
		return nil, errors.Wrap(err, "decoding issuer")
	}
	return &resp, nil
}

func GetDIDDocument(domain string) (*didint.Document, error) {
	logrus.Println("\n\nGet the DID document of an issuer:")
	output, err := get(endpoint + ".well-known/did.json?domain=" + url.QueryEscape(domain))
	if err != nil {
		return nil, errors.Wrapf(err, "well known endpoint with output: %s", output)
	}
	return didint.ParseDocument([]byte(output))
}

type requestParams struct {
	CaseID string
}

func CreateCredentialRequest(params requestParams) (string, error) {
	logrus.Println("\n\nCreate a credential request:")
	input, err := resolveTemplate(params, "request-input.json")
	if err != nil {
		return "", err
	}
	output, err := put(endpoint+version+"requests", input)
	if err != nil {
		return "", errors.Wrapf(err, "request endpoint with output: %s", output)
	}
	return output, nil
}

type holderParams struct {
	CaseID    string
	HolderDID string
}

func RegisterHolder(params holderParams) (string, error) {
	logrus.Println("\n\nRegister the holder of a case:")
	input, err := resolveTemplate(params, "holder-input.json")
	if err != nil {
		return "", err
	}
	output, err := put(endpoint+version+"requests/"+url.PathEscape(params.CaseID)+"/holder", input)
	if err != nil {
		return "", errors.Wrapf(err, "holder endpoint with output: %s", output)
	}
	return output, nil
}

func IssueCredential(caseID string) (*router.IssueCredentialResponse, error) {
	logrus.Println("\n\nIssue the credential of a case:")
	output, err := put(endpoint+version+"requests/"+url.PathEscape(caseID)+"/issue", "")
	if err != nil {
		return nil, errors.Wrapf(err, "issue endpoint with output: %s", output)
	}
	var resp router.IssueCredentialResponse
	if err = json.Unmarshal([]byte(output), &resp); err != nil {
		return nil, errors.Wrap(err, "decoding issuance")
	}
	return &resp, nil
}

type statusParams struct {
	CaseID string
	Status string
}

func TransitionStatus(params statusParams) (string, error) {
	logrus.Println("\n\nUpdate the status of a case:")
	input, err := resolveTemplate(params, "status-input.json")
	if err != nil {
		return "", err
	}
	output, err := put(endpoint+version+"requests/"+url.PathEscape(params.CaseID)+"/status", input)
	if err != nil {
		return "", errors.Wrapf(err, "status endpoint with output: %s", output)
	}
	return output, nil
}

func ListRequests(filter string) (*router.ListRequestsResponse, error) {
	logrus.Println("\n\nList credential requests:")
	output, err := get(endpoint + version + "requests?filter=" + url.QueryEscape(filter))
	if err != nil {
		return nil, errors.Wrapf(err, "requests endpoint with output: %s", output)
	}
	var resp router.ListRequestsResponse
	if err = json.Unmarshal([]byte(output), &resp); err != nil {
		return nil, errors.Wrap(err, "decoding requests")
	}
	return &resp, nil
}

// serviceResolver resolves DIDs through the resolver endpoint of the service under test.
type serviceResolver struct{}

var _ didint.Resolver = (*serviceResolver)(nil)

func (serviceResolver) Resolve(_ context.Context, did string) (*didint.ResolutionResult, error) {
	output, err := get(endpoint + version + "dids/resolver/" + did)
	if err != nil {
		return nil, errors.Wrapf(err, "did resolver with output: %s", output)
	}
	var resp router.ResolveDIDResponse
	if err = json.Unmarshal([]byte(output), &resp); err != nil {
		return nil, errors.Wrap(err, "decoding resolution")
	}
	if resp.DIDDocument == nil {
		return nil, errors.Errorf("no document for %s", did)
	}
	return &didint.ResolutionResult{Document: *resp.DIDDocument}, nil
}

func (serviceResolver) Methods() []didint.Method {
	return []didint.Method{didint.KeyMethod, didint.WebMethod}
}

func resolveTemplate(input any, fileName string) (string, error) {
	t, err := template.ParseFS(testVectors, "testdata/"+fileName)
	if err != nil {
		return "", errors.Wrapf(err, "parsing template %s", fileName)
	}
	var b bytes.Buffer
	if err = t.Execute(&b, input); err != nil {
		return "", errors.Wrapf(err, "executing template %s", fileName)
	}
	return b.String(), nil
}

func get(url string) (string, error) {
	logrus.Printf("\nPerforming GET request to:  %s\n", url)
	resp, err := client.Get(url)
	if err != nil {
		return "", errors.Wrap(err, "client http client")
	}
	return readBody(resp)
}

func put(url string, json string) (string, error) {
	logrus.Printf("\nPerforming PUT request to:  %s \n\nwith data: \n%s\n", url, json)

	var body io.Reader = http.NoBody
	if json != "" {
		body = strings.NewReader(json)
	}
	req, err := http.NewRequest(http.MethodPut, url, body)
	if err != nil {
		return "", errors.Wrap(err, "building http req")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "client http client")
	}
	return readBody(resp)
}

func readBody(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "parsing body")
	}

	bodyStr := string(body)
	if !util.Is2xxResponse(resp.StatusCode) {
		return "", fmt.Errorf("status code %v not in the 200s. body: %s", resp.StatusCode, bodyStr)
	}

	logrus.Println("\nOutput:")
	logrus.Println(bodyStr)
	return bodyStr, nil
}

// getJSONElement returns the element at jsonPath in a JSON object as a string. Objects and arrays are returned as
// JSON.
func getJSONElement(jsonString string, jsonPath string) (string, error) {
	jsonMap := make(map[string]any)
	if err := json.Unmarshal([]byte(jsonString), &jsonMap); err != nil {
		return "", errors.Wrap(err, "unmarshalling json string")
	}

	element, err := jsonpath.JsonPathLookup(jsonMap, jsonPath)
	if err != nil {
		return "", errors.Wrap(err, "finding element in json string")
	}

	switch e := element.(type) {
	case nil:
		return "<nil>", nil
	case string:
		return e, nil
	case map[string]any, []any:
		data, err := json.Marshal(e)
		if err != nil {
			return "", errors.Wrap(err, "marshalling element")
		}
		return string(data), nil
	default:
		return fmt.Sprintf("%v", e), nil
	}
}
