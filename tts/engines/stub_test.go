package engines

import (
	"context"

	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
)

// stubClient stands in for the Google Text-to-Speech client.
type stubClient struct {
	closed bool
}

func (c *stubClient) SynthesizeSpeech(context.Context, *texttospeechpb.SynthesizeSpeechRequest, ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	return &texttospeechpb.SynthesizeSpeechResponse{}, nil
}

func (c *stubClient) ListVoices(context.Context, *texttospeechpb.ListVoicesRequest, ...gax.CallOption) (*texttospeechpb.ListVoicesResponse, error) {
	return &texttospeechpb.ListVoicesResponse{}, nil
}

func (c *stubClient) Close() error {
	c.closed = true
	return nil
}
