package status

import "time"

// Phase is the coarse connection state of the supervised client.
type Phase string

const (
	PhaseStarting         Phase = "starting"
	PhaseAwaitingArtifact Phase = "awaiting_artifact"
	PhaseArtifactReady    Phase = "artifact_ready"
	PhaseConnected        Phase = "connected"
	PhaseFailed           Phase = "failed"
)

// Terminal reports whether no further transitions are accepted from p.
func (p Phase) Terminal() bool {
	return p == PhaseConnected || p == PhaseFailed
}

func (p Phase) String() string {
	return string(p)
}

// Status is a point-in-time snapshot of the pairing state.
type Status struct {
	Phase Phase
	// Artifact is the rendered pairing code; set only in PhaseArtifactReady.
	Artifact string
	// ArtifactID identifies the current artifact rotation.
	ArtifactID string
	Message    string
	UpdatedAt  time.Time
}

// Operator-facing messages shown by the web page. The page is pt-BR.
const (
	MessageStarting         = "Iniciando..."
	MessageLaunching        = "Iniciando cliente do WhatsApp..."
	MessageProvisioning     = "Instalando dependências..."
	MessageWaitingArtifact  = "Servidor iniciado, aguardando QR Code..."
	MessageArtifactReceived = "QR Code recebido, aguardando renderização..."
	MessageArtifactReady    = "QR Code disponível"
	MessageConnected        = "WhatsApp conectado e pronto para uso"

	// Formatted with the underlying error.
	MessageErrorFmt = "Erro: %v"
	// Formatted with the child's exit status.
	MessageExitedFmt = "Cliente encerrado antes de conectar (%s)"
)
