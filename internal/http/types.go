package http

import "pairwatch/internal/status"

// QRStatusResponse is the body of GET /api/qr-status.
type QRStatusResponse struct {
	// QR is the rendered pairing code, null when none is available.
	QR *string `json:"qr"`
	// Status is "connected" once paired, otherwise a progress message.
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Phase     string `json:"phase"`
}

// NewQRStatusResponse maps a status snapshot to the API shape.
func NewQRStatusResponse(st status.Status) QRStatusResponse {
	resp := QRStatusResponse{
		Status:    st.Message,
		Timestamp: st.UpdatedAt.Unix(),
		Phase:     string(st.Phase),
	}
	if st.Phase == status.PhaseConnected {
		resp.Status = string(status.PhaseConnected)
	}
	if st.Phase == status.PhaseArtifactReady && st.Artifact != "" {
		qr := st.Artifact
		resp.QR = &qr
	}
	return resp
}

type OpenDashboardResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse is the error envelope for API failures.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error"`
}
