package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/skywatch/skywatch-relay/internal/config"
)

// InitRequest is the body of POST /api/init-webrtc. The offer is relayed
// verbatim and never reinterpreted.
type InitRequest struct {
	Offer      json.RawMessage `json:"offer"`
	WRTCParams *StreamParams   `json:"wrtcParams,omitempty"`
}

// StreamParams are the optional stream settings chosen by the browser.
// A nil field falls back to the configured default.
type StreamParams struct {
	WorkspaceName     *string  `json:"workspaceName,omitempty"`
	WorkflowID        *string  `json:"workflowId,omitempty"`
	StreamOutputNames []string `json:"streamOutputNames,omitempty"`
	DataOutputNames   []string `json:"dataOutputNames,omitempty"`
	ProcessingTimeout *int     `json:"processingTimeout,omitempty"`
	RequestedPlan     *string  `json:"requestedPlan,omitempty"`
	RequestedRegion   *string  `json:"requestedRegion,omitempty"`
}

// ProviderPayload is what the provider's init endpoint receives.
// WorkspaceName and WorkflowID are sent as null when the browser omits them.
type ProviderPayload struct {
	Offer             json.RawMessage `json:"offer"`
	APIKey            string          `json:"api_key"`
	WorkspaceName     *string         `json:"workspace_name"`
	WorkflowID        *string         `json:"workflow_id"`
	StreamOutputNames []string        `json:"stream_output_names"`
	DataOutputNames   []string        `json:"data_output_names"`
	ProcessingTimeout int             `json:"processing_timeout"`
	RequestedPlan     string          `json:"requested_plan"`
	RequestedRegion   string          `json:"requested_region"`
}

func buildPayload(req InitRequest, apiKey string, defaults config.StreamDefaults) ProviderPayload {
	p := ProviderPayload{
		Offer:             req.Offer,
		APIKey:            apiKey,
		StreamOutputNames: append([]string{}, defaults.StreamOutputNames...),
		DataOutputNames:   append([]string{}, defaults.DataOutputNames...),
		ProcessingTimeout: defaults.ProcessingTimeout,
		RequestedPlan:     defaults.RequestedPlan,
		RequestedRegion:   defaults.RequestedRegion,
	}

	params := req.WRTCParams
	if params == nil {
		return p
	}
	p.WorkspaceName = params.WorkspaceName
	p.WorkflowID = params.WorkflowID
	if params.StreamOutputNames != nil {
		p.StreamOutputNames = params.StreamOutputNames
	}
	if params.DataOutputNames != nil {
		p.DataOutputNames = params.DataOutputNames
	}
	if params.ProcessingTimeout != nil {
		p.ProcessingTimeout = *params.ProcessingTimeout
	}
	if params.RequestedPlan != nil {
		p.RequestedPlan = *params.RequestedPlan
	}
	if params.RequestedRegion != nil {
		p.RequestedRegion = *params.RequestedRegion
	}
	return p
}

// offerMissing reports whether the offer is absent or JSON-falsy: null,
// false, 0, "", {} or [].
func offerMissing(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return true
	}
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case float64:
		return t == 0
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}

type sdp struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type offerSummary struct {
	MediaSections int
	Kinds         []string
}

// describeOffer parses an offer shaped like {type, sdp} with pion. It is
// used for logging only; the relay forwards whatever the browser sent.
func describeOffer(raw json.RawMessage) (offerSummary, error) {
	var s sdp
	if err := json.Unmarshal(raw, &s); err != nil {
		return offerSummary{}, fmt.Errorf("offer is not a session description: %w", err)
	}
	if s.SDP == "" {
		return offerSummary{}, fmt.Errorf("offer has no sdp")
	}
	if s.Type != "" && s.Type != webrtc.SDPTypeOffer.String() {
		return offerSummary{}, fmt.Errorf("unexpected sdp type %q", s.Type)
	}

	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: s.SDP}
	parsed, err := desc.Unmarshal()
	if err != nil {
		return offerSummary{}, fmt.Errorf("parse sdp: %w", err)
	}

	out := offerSummary{MediaSections: len(parsed.MediaDescriptions)}
	for _, md := range parsed.MediaDescriptions {
		out.Kinds = append(out.Kinds, md.MediaName.Media)
	}
	return out, nil
}
