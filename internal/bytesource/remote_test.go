package bytesource

import (
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeClient struct {
	resp *http.Response
	err  error
}

func (f *fakeClient) Do(req *http.Request) (*http.Response, error) {
	return f.resp, f.err
}

func newFakeResp(status int, body string, headers map[string]string) *http.Response {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     h,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func TestRemoteSource_PartialContent(t *testing.T) {
	client := &fakeClient{resp: newFakeResp(http.StatusPartialContent, "hello", map[string]string{
		"Content-Range": "bytes 0-4/100",
	})}
	src := NewRemoteSource(client, "https://example.test/a.zip", 100, RangeSupportYes, false)
	got, err := src.ReadRange(0, 4)
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestRemoteSource_FullResponseTreatedAsUnsupported(t *testing.T) {
	client := &fakeClient{resp: newFakeResp(http.StatusOK, "whole file ignoring range", nil)}
	src := NewRemoteSource(client, "https://example.test/a.zip", 100, RangeSupportYes, false)
	_, err := src.ReadRange(0, 4)
	assert.ErrorIs(t, err, ErrRangeUnsupported)
}

func TestRemoteSource_KnownUnsupported(t *testing.T) {
	client := &fakeClient{resp: newFakeResp(http.StatusOK, "irrelevant", nil)}
	src := NewRemoteSource(client, "https://example.test/a.zip", 100, RangeSupportNo, false)
	_, err := src.ReadRange(0, 4)
	assert.ErrorIs(t, err, ErrRangeUnsupported)
}

func TestRemoteSource_OutOfBounds(t *testing.T) {
	client := &fakeClient{}
	src := NewRemoteSource(client, "https://example.test/a.zip", 10, RangeSupportYes, false)
	_, err := src.ReadRange(5, 20)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestParseContentRangeTotal(t *testing.T) {
	total, ok := ParseContentRangeTotal("bytes 0-4/2000")
	assert.True(t, ok)
	assert.Equal(t, int64(2000), total)

	_, ok = ParseContentRangeTotal("bytes 0-4/*")
	assert.False(t, ok)
}
