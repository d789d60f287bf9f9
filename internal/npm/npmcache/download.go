package npmcache

import (
	"io"
	"net/http"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

var httpClient = newClient()

func newClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.Logger = nil
	return c
}

func downloadTarball(tarballURL string) ([]byte, error) {
	req, err := retryablehttp.NewRequest(http.MethodGet, tarballURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{URL: tarballURL, Status: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

type httpStatusError struct {
	URL    string
	Status int
}

func (e *httpStatusError) Error() string {
	return "unexpected status " + http.StatusText(e.Status) + " fetching " + e.URL
}
