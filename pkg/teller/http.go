package teller

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/vault-teller/pkg/app/errors"
	apphttp "github.com/chainsafe/vault-teller/pkg/app/http"
	"github.com/chainsafe/vault-teller/pkg/auth"
	"github.com/chainsafe/vault-teller/pkg/db"
	"github.com/chainsafe/vault-teller/pkg/wire"
)

// HTTPOptions adjusts the trust boundary of the HTTP surface.
type HTTPOptions struct {
	// RelayerAddress, when non-zero, requires inbound deliveries to carry
	// an EIP-191 signature over the raw body by this address.
	RelayerAddress common.Address
	// AllowUnauthenticatedCaller permits bridge requests to name their
	// caller in the request body. Local development only.
	AllowUnauthenticatedCaller bool
}

// HTTP wraps the teller Service, the Receiver and the read-side queries.
type HTTP struct {
	service  Service
	receiver *Receiver
	store    Store
	opts     HTTPOptions
	logger   *zap.Logger
}

// RegisterRoutes mounts the bridge endpoints, the inbound delivery
// webhook and the observer queries on r.
func RegisterRoutes(r chi.Router, service Service, receiver *Receiver, store Store, opts HTTPOptions, logger *zap.Logger) {
	h := &HTTP{
		service:  service,
		receiver: receiver,
		store:    store,
		opts:     opts,
		logger:   logger,
	}

	r.Post("/bridge", apphttp.HandleError(h.bridge))
	r.Post("/deposit-and-bridge", apphttp.HandleError(h.depositAndBridge))
	r.Post("/messages/inbound", apphttp.HandleError(h.inbound))
	r.Get("/sends", apphttp.HandleError(h.listSends))
	r.Get("/sends/{id}", apphttp.HandleError(h.getSend))
	r.Get("/settlements/{id}", apphttp.HandleError(h.getSettlement))
	r.Get("/events", apphttp.HandleError(h.listEvents))
}

type bridgeHTTPRequest struct {
	// Caller is honored only when AllowUnauthenticatedCaller is set;
	// authenticated requests burn from the actor's address.
	Caller              string `json:"caller,omitempty"`
	ChainSelector       uint64 `json:"chain_selector,string"`
	DestinationReceiver string `json:"destination_receiver"`
	ShareAmount         string `json:"share_amount"`
	FeeToken            string `json:"fee_token,omitempty"`
	MessageGas          uint64 `json:"message_gas"`
	Data                string `json:"data,omitempty"`
}

type depositHTTPRequest struct {
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	MinimumMint string `json:"minimum_mint,omitempty"`
}

type depositAndBridgeHTTPRequest struct {
	Caller  string             `json:"caller,omitempty"`
	Deposit depositHTTPRequest `json:"deposit"`
	Bridge  bridgeHTTPRequest  `json:"bridge"`
}

type inboundMessageRequest struct {
	SourceSelector uint64 `json:"source_selector,string"`
	Sender         string `json:"sender"`
	Nonce          uint64 `json:"nonce"`
	Payload        string `json:"payload"`
}

type messageIDResponse struct {
	MessageID string `json:"message_id"`
}

// SendResponse is the JSON projection of an outbound send record.
type SendResponse struct {
	ID                  string     `json:"id"`
	DestinationSelector uint64     `json:"destination_selector,string"`
	Nonce               uint64     `json:"nonce"`
	Caller              string     `json:"caller"`
	Recipient           string     `json:"recipient"`
	PeerTeller          string     `json:"peer_teller"`
	ShareAmount         string     `json:"share_amount"`
	FeeToken            string     `json:"fee_token"`
	FeeAmount           *string    `json:"fee_amount,omitempty"`
	MessageGas          uint64     `json:"message_gas"`
	Status              string     `json:"status"`
	TransportReceipt    *string    `json:"transport_receipt,omitempty"`
	ErrorMessage        *string    `json:"error_message,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	DispatchedAt        *time.Time `json:"dispatched_at,omitempty"`
}

// EventResponse is the JSON projection of a teller event row.
type EventResponse struct {
	ID            int64     `json:"id"`
	Type          string    `json:"type"`
	ChainSelector uint64    `json:"chain_selector,string"`
	MessageID     *string   `json:"message_id,omitempty"`
	ShareAmount   *string   `json:"share_amount,omitempty"`
	Recipient     *string   `json:"recipient,omitempty"`
	PeerTeller    *string   `json:"peer_teller,omitempty"`
	GasLimit      *uint64   `json:"gas_limit,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// SettlementResponse is the JSON projection of a settled inbound message.
type SettlementResponse struct {
	ID             string    `json:"id"`
	SourceSelector uint64    `json:"source_selector,string"`
	Sender         string    `json:"sender"`
	Recipient      string    `json:"recipient"`
	ShareAmount    string    `json:"share_amount"`
	SettledAt      time.Time `json:"settled_at"`
}

func (h *HTTP) bridge(w http.ResponseWriter, r *http.Request) error {
	var req bridgeHTTPRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	caller, err := h.callerAddress(r, req.Caller)
	if err != nil {
		return err
	}
	shareAmount, err := parseAmount(req.ShareAmount, "share_amount")
	if err != nil {
		return err
	}
	bridgeReq, err := toBridgeRequest(&req)
	if err != nil {
		return err
	}

	id, err := h.service.Bridge(r.Context(), caller, shareAmount, bridgeReq)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, messageIDResponse{MessageID: id.Hex()})
	return nil
}

func (h *HTTP) depositAndBridge(w http.ResponseWriter, r *http.Request) error {
	var req depositAndBridgeHTTPRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	caller, err := h.callerAddress(r, req.Caller)
	if err != nil {
		return err
	}
	asset, err := parseAddress(req.Deposit.Asset, "asset")
	if err != nil {
		return err
	}
	amount, err := parseAmount(req.Deposit.Amount, "amount")
	if err != nil {
		return err
	}
	minimumMint := big.NewInt(0)
	if req.Deposit.MinimumMint != "" {
		if minimumMint, err = parseAmount(req.Deposit.MinimumMint, "minimum_mint"); err != nil {
			return err
		}
	}
	bridgeReq, err := toBridgeRequest(&req.Bridge)
	if err != nil {
		return err
	}

	id, err := h.service.DepositAndBridge(r.Context(), caller, DepositRequest{
		Asset:       asset,
		Amount:      amount,
		MinimumMint: minimumMint,
	}, bridgeReq)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, messageIDResponse{MessageID: id.Hex()})
	return nil
}

func (h *HTTP) inbound(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}

	if h.opts.RelayerAddress != (common.Address{}) {
		signature := r.Header.Get("X-Signature")
		if signature == "" {
			return apperrors.UnAuthorizedError(nil, "delivery signature required")
		}
		signer, err := auth.VerifyEIP191Signature(string(body), signature)
		if err != nil {
			return apperrors.UnAuthorizedError(err, "invalid delivery signature")
		}
		if signer != h.opts.RelayerAddress {
			return apperrors.ForbiddenError(nil, "delivery signer not recognized")
		}
	}

	var req inboundMessageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	sender, err := parseAddress(req.Sender, "sender")
	if err != nil {
		return err
	}
	payload, err := parseHexData(req.Payload)
	if err != nil {
		return err
	}

	msg := &InboundMessage{
		SourceSelector: req.SourceSelector,
		Sender:         sender,
		Nonce:          req.Nonce,
		Payload:        payload,
	}
	if err := h.receiver.OnMessage(r.Context(), msg); err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, messageIDResponse{MessageID: msg.ID().Hex()})
	return nil
}

func (h *HTTP) listSends(w http.ResponseWriter, r *http.Request) error {
	limit, err := limitParam(r)
	if err != nil {
		return err
	}

	sends, err := h.store.ListSends(r.Context(), limit)
	if err != nil {
		return err
	}

	resp := make([]SendResponse, 0, len(sends))
	for _, s := range sends {
		resp = append(resp, toSendResponse(s))
	}
	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) getSend(w http.ResponseWriter, r *http.Request) error {
	id, err := messageIDParam(r)
	if err != nil {
		return err
	}

	send, err := h.store.GetSend(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrSendNotFound) {
			return apperrors.ResourceNotFoundError(err, "send not found")
		}
		return err
	}

	h.writeJSON(w, http.StatusOK, toSendResponse(send))
	return nil
}

func (h *HTTP) getSettlement(w http.ResponseWriter, r *http.Request) error {
	id, err := messageIDParam(r)
	if err != nil {
		return err
	}

	st, err := h.store.GetSettlement(r.Context(), id)
	if err != nil {
		return err
	}
	if st == nil {
		return apperrors.ResourceNotFoundError(nil, "settlement not found")
	}

	h.writeJSON(w, http.StatusOK, toSettlementResponse(st))
	return nil
}

func (h *HTTP) listEvents(w http.ResponseWriter, r *http.Request) error {
	limit, err := limitParam(r)
	if err != nil {
		return err
	}

	q := db.EventQuery{
		Type:  r.URL.Query().Get("type"),
		Limit: limit,
	}
	if raw := r.URL.Query().Get("selector"); raw != "" {
		selector, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return apperrors.BadRequestError(err, "invalid selector filter")
		}
		q.Selector = &selector
	}

	events, err := h.store.ListEvents(r.Context(), q)
	if err != nil {
		return err
	}

	resp := make([]EventResponse, 0, len(events))
	for _, evt := range events {
		resp = append(resp, toEventResponse(evt))
	}
	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

// callerAddress resolves whose shares a bridge request spends. The
// authenticated actor's address wins; a body-supplied caller is honored
// only in the development configuration.
func (h *HTTP) callerAddress(r *http.Request, bodyCaller string) (common.Address, error) {
	if a, ok := auth.ActorFromContext(r.Context()); ok && a.EVMAddress != (common.Address{}) {
		return a.EVMAddress, nil
	}
	if h.opts.AllowUnauthenticatedCaller && bodyCaller != "" {
		return parseAddress(bodyCaller, "caller")
	}
	return common.Address{}, apperrors.UnAuthorizedError(nil, "caller identity required")
}

func toBridgeRequest(req *bridgeHTTPRequest) (BridgeRequest, error) {
	receiver, err := parseAddress(req.DestinationReceiver, "destination_receiver")
	if err != nil {
		return BridgeRequest{}, err
	}
	feeToken := common.Address{}
	if req.FeeToken != "" {
		if feeToken, err = parseAddress(req.FeeToken, "fee_token"); err != nil {
			return BridgeRequest{}, err
		}
	}
	data, err := parseHexData(req.Data)
	if err != nil {
		return BridgeRequest{}, err
	}

	return BridgeRequest{
		ChainSelector:       req.ChainSelector,
		DestinationReceiver: receiver,
		FeeToken:            feeToken,
		MessageGas:          req.MessageGas,
		Data:                data,
	}, nil
}

func toSendResponse(s *db.Send) SendResponse {
	resp := SendResponse{
		ID:                  s.ID.Hex(),
		DestinationSelector: s.DestinationSelector,
		Nonce:               s.Nonce,
		Caller:              s.Caller.Hex(),
		Recipient:           s.Recipient.Hex(),
		PeerTeller:          s.PeerTeller.Hex(),
		ShareAmount:         s.ShareAmount.String(),
		FeeToken:            s.FeeToken.Hex(),
		MessageGas:          s.MessageGas,
		Status:              string(s.Status),
		TransportReceipt:    s.TransportReceipt,
		ErrorMessage:        s.ErrorMessage,
		CreatedAt:           s.CreatedAt,
		DispatchedAt:        s.DispatchedAt,
	}
	if s.FeeAmount != nil {
		fee := s.FeeAmount.String()
		resp.FeeAmount = &fee
	}
	return resp
}

func toEventResponse(evt *db.TellerEvent) EventResponse {
	resp := EventResponse{
		ID:            evt.ID,
		Type:          string(evt.Type),
		ChainSelector: evt.ChainSelector,
		GasLimit:      evt.GasLimit,
		CreatedAt:     evt.CreatedAt,
	}
	if evt.MessageID != nil {
		id := evt.MessageID.Hex()
		resp.MessageID = &id
	}
	if evt.ShareAmount != nil {
		amount := evt.ShareAmount.String()
		resp.ShareAmount = &amount
	}
	if evt.Recipient != nil {
		recipient := evt.Recipient.Hex()
		resp.Recipient = &recipient
	}
	if evt.PeerTeller != nil {
		peer := evt.PeerTeller.Hex()
		resp.PeerTeller = &peer
	}
	return resp
}

func toSettlementResponse(st *db.Settlement) SettlementResponse {
	return SettlementResponse{
		ID:             st.ID.Hex(),
		SourceSelector: st.SourceSelector,
		Sender:         st.Sender.Hex(),
		Recipient:      st.Recipient.Hex(),
		ShareAmount:    st.ShareAmount.String(),
		SettledAt:      st.SettledAt,
	}
}

func (h *HTTP) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	return nil
}

func parseAddress(raw, field string) (common.Address, error) {
	if !auth.ValidateEVMAddress(raw) {
		return common.Address{}, apperrors.BadRequestError(nil, "invalid "+field)
	}
	return common.HexToAddress(raw), nil
}

func parseAmount(raw, field string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, apperrors.BadRequestError(nil, "invalid "+field)
	}
	return v, nil
}

func parseHexData(raw string) ([]byte, error) {
	if raw == "" {
		return nil, nil
	}
	data, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return nil, apperrors.BadRequestError(err, "invalid hex data")
	}
	return data, nil
}

func messageIDParam(r *http.Request) (wire.MessageID, error) {
	id, err := wire.ParseMessageID(chi.URLParam(r, "id"))
	if err != nil {
		return wire.MessageID{}, apperrors.BadRequestError(err, "invalid message id")
	}
	return id, nil
}

func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, apperrors.BadRequestError(err, "invalid limit")
	}
	return limit, nil
}
