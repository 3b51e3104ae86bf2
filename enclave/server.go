package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"
	"github.com/joeshaw/envdecode"
	"github.com/mdlayher/vsock"

	"github.com/cloudx-io/sealedbid/core"
	"github.com/cloudx-io/sealedbid/enclaveapi"
	"github.com/cloudx-io/sealedbid/ledger"
	"github.com/cloudx-io/sealedbid/log"
)

// Config is read from the enclave's environment.
type Config struct {
	Port        uint32        `env:"ENCLAVE_PORT,default=5000"`
	MaxWorkers  int           `env:"ENCLAVE_MAX_WORKERS,required"`
	ReadTimeout time.Duration `env:"ENCLAVE_READ_TIMEOUT,default=30s"`
	LogLevel    string        `env:"ENCLAVE_LOG_LEVEL,default=info"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return cfg, fmt.Errorf("failed to read enclave environment: %w", err)
	}
	if cfg.MaxWorkers < 1 {
		return cfg, fmt.Errorf("invalid value for ENCLAVE_MAX_WORKERS: %d (must be at least 1)", cfg.MaxWorkers)
	}
	return cfg, nil
}

// EnclaveServer answers one JSON request per vsock connection. Delegated
// bids live only in its memory.
type EnclaveServer struct {
	cfg      Config
	key      *SealingKey
	custody  *ledger.MemoryDomain
	attester func() (EnclaveAttester, error)
}

func NewEnclaveServer(cfg Config, key *SealingKey) *EnclaveServer {
	return &EnclaveServer{
		cfg:      cfg,
		key:      key,
		custody:  ledger.NewMemoryDomain(key.private),
		attester: getEnclaveAttester,
	}
}

// getEnclaveAttester attempts to get the NSM attester, returns error if not available
func getEnclaveAttester() (EnclaveAttester, error) {
	handle, err := enclave.GetOrInitializeHandle()
	if err != nil {
		return nil, fmt.Errorf("NSM not available: %w", err)
	}
	return handle, nil
}

func (s *EnclaveServer) Start() error {
	listener, err := vsock.Listen(s.cfg.Port, nil)
	if err != nil {
		return fmt.Errorf("failed to create vsock listener: %w", err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Errorf("Failed to close listener: %v", err)
		}
	}()

	log.Infof("TEE server listening on vsock port %d", s.cfg.Port)
	return s.Serve(listener)
}

// Serve accepts connections until the listener is closed.
func (s *EnclaveServer) Serve(listener net.Listener) error {
	semaphore := make(chan struct{}, s.cfg.MaxWorkers)
	log.Infof("Worker pool initialized with %d max concurrent workers", s.cfg.MaxWorkers)

	for {
		conn, err := listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		if err != nil {
			log.Errorf("Failed to accept vsock connection: %v", err)
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }()
				s.handleConnection(c)
			}(conn)
		default:
			log.Infof("No workers available, rejecting connection (pool full)")
			if err := conn.Close(); err != nil {
				log.Errorf("Failed to close rejected connection: %v", err)
			}
		}
	}
}

func (s *EnclaveServer) handleConnection(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Panic recovered in handleConnection: %v", r)
		}
		if err := conn.Close(); err != nil {
			log.Errorf("Failed to close connection: %v", err)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

	var raw json.RawMessage
	if err := json.NewDecoder(conn).Decode(&raw); err != nil {
		log.Errorf("Failed to read request: %v", err)
		return
	}

	var baseReq struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &baseReq); err != nil {
		log.Errorf("Failed to decode base request: %v", err)
		return
	}

	log.Debugf("Received request type: %s", baseReq.Type)
	response := s.dispatch(context.Background(), baseReq.Type, raw)

	if err := json.NewEncoder(conn).Encode(response); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (s *EnclaveServer) dispatch(ctx context.Context, reqType string, raw []byte) any {
	switch reqType {
	case enclaveapi.TypePing:
		return &enclaveapi.PingResponse{
			Type:      enclaveapi.TypePong,
			Message:   "TEE server is healthy",
			Timestamp: time.Now().Unix(),
		}
	case enclaveapi.TypeKeyRequest:
		return s.handleKeyRequest()
	case enclaveapi.TypeDelegateRequest:
		return s.handleDelegate(ctx, raw)
	case enclaveapi.TypeSubmitRequest:
		return s.handleSubmit(ctx, raw)
	case enclaveapi.TypeUndelegateRequest:
		return s.handleUndelegate(ctx, raw)
	case enclaveapi.TypeForgetRequest:
		return s.handleForget(ctx, raw)
	default:
		return errorResponse(enclaveapi.TypeError, fmt.Errorf("unknown request type: %s", reqType))
	}
}

// errorResponse keeps the auction error code so the host can rebuild the
// exact rejection.
func errorResponse(respType string, err error) *enclaveapi.Response {
	resp := &enclaveapi.Response{Type: respType, Message: err.Error()}
	var ae *core.AuctionError
	if errors.As(err, &ae) {
		resp.Code = uint32(ae.Code)
		resp.Message = ae.Msg
	}
	return resp
}

func (s *EnclaveServer) handleKeyRequest() any {
	attester, err := s.attester()
	if err != nil {
		log.Errorf("Key request failed: %v", err)
		return errorResponse(enclaveapi.TypeKeyResponse, fmt.Errorf("failed to initialize TEE attester: %w", err))
	}
	keyResp, err := s.key.KeyResponse(attester)
	if err != nil {
		log.Errorf("Key request failed: %v", err)
		return errorResponse(enclaveapi.TypeKeyResponse, err)
	}
	return keyResp
}

func (s *EnclaveServer) handleDelegate(ctx context.Context, raw []byte) any {
	var req enclaveapi.DelegateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(enclaveapi.TypeDelegateResponse, fmt.Errorf("failed to decode delegate request: %w", err))
	}
	if err := s.custody.Delegate(ctx, req.Bid); err != nil {
		return errorResponse(enclaveapi.TypeDelegateResponse, err)
	}
	log.Infof("Took custody of bid %s/%s", req.Bid.Auction.Short(), req.Bid.Bidder.Short())
	return &enclaveapi.Response{Type: enclaveapi.TypeDelegateResponse, Success: true}
}

// handleSubmit never echoes the amount; the host only learns the top-up.
func (s *EnclaveServer) handleSubmit(ctx context.Context, raw []byte) any {
	var req enclaveapi.SubmitRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(enclaveapi.TypeSubmitResponse, fmt.Errorf("failed to decode submit request: %w", err))
	}
	result, err := s.custody.Submit(ctx, ledger.SubmitRequest{
		Auction:       req.Auction,
		Bidder:        req.Bidder,
		Amount:        req.Amount,
		Sealed:        req.SealedAmount,
		Deposited:     req.Deposited,
		WalletBalance: req.WalletBalance,
		VaultBalance:  req.VaultBalance,
		Now:           req.Now,
	})
	if err != nil {
		return &enclaveapi.SubmitResponse{Response: *errorResponse(enclaveapi.TypeSubmitResponse, err)}
	}
	return &enclaveapi.SubmitResponse{
		Response: enclaveapi.Response{Type: enclaveapi.TypeSubmitResponse, Success: true},
		TopUp:    result.TopUp,
	}
}

func (s *EnclaveServer) handleUndelegate(ctx context.Context, raw []byte) any {
	var req enclaveapi.UndelegateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(enclaveapi.TypeUndelegateResponse, fmt.Errorf("failed to decode undelegate request: %w", err))
	}

	attester, err := s.attester()
	if err != nil {
		log.Errorf("Undelegate failed: %v", err)
		return errorResponse(enclaveapi.TypeUndelegateResponse, fmt.Errorf("failed to initialize TEE attester: %w", err))
	}

	release, err := s.custody.Undelegate(ctx, req.Auction, req.Bidder, req.BidAddress)
	if err != nil {
		return &enclaveapi.UndelegateResponse{Response: *errorResponse(enclaveapi.TypeUndelegateResponse, err)}
	}

	// Custody is kept until the host sends forget_request, so a failed
	// attestation or a lost reply only costs a retry.
	attestation, err := GenerateCommitAttestation(attester, req.BidAddress, release.Bid)
	if err != nil {
		return &enclaveapi.UndelegateResponse{Response: *errorResponse(enclaveapi.TypeUndelegateResponse, err)}
	}

	log.Infof("Released bid %s for commit", req.BidAddress.Short())
	return &enclaveapi.UndelegateResponse{
		Response:              enclaveapi.Response{Type: enclaveapi.TypeUndelegateResponse, Success: true},
		Bid:                   &release.Bid,
		AttestationCOSEBase64: attestation.EncodeBase64(),
	}
}

func (s *EnclaveServer) handleForget(ctx context.Context, raw []byte) any {
	var req enclaveapi.ForgetRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(enclaveapi.TypeForgetResponse, fmt.Errorf("failed to decode forget request: %w", err))
	}
	if err := s.custody.Forget(ctx, req.Auction, req.Bidder); err != nil {
		return errorResponse(enclaveapi.TypeForgetResponse, err)
	}
	log.Debugf("Dropped custody of bid %s/%s", req.Auction.Short(), req.Bidder.Short())
	return &enclaveapi.Response{Type: enclaveapi.TypeForgetResponse, Success: true}
}

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := log.Init(cfg.LogLevel, "json", ""); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	key, err := NewSealingKey()
	if err != nil {
		log.Errorf("Failed to create sealing key: %v", err)
		os.Exit(1)
	}
	log.Infof("Sealing key ready (%s)", key.Algorithm())

	if err := NewEnclaveServer(cfg, key).Start(); err != nil {
		log.Errorf("Enclave server stopped: %v", err)
		os.Exit(1)
	}
}
