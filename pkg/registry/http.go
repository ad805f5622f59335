package registry

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/vault-teller/pkg/app/errors"
	apphttp "github.com/chainsafe/vault-teller/pkg/app/http"
	"github.com/chainsafe/vault-teller/pkg/auth"
	"github.com/chainsafe/vault-teller/pkg/db"
)

// HTTP wraps the Registry with the chain administration endpoints.
type HTTP struct {
	registry *Registry
	logger   *zap.Logger
}

// RegisterRoutes mounts the chain admin and query endpoints on r.
func RegisterRoutes(r chi.Router, registry *Registry, logger *zap.Logger) {
	h := &HTTP{
		registry: registry,
		logger:   logger,
	}

	r.Route("/chains", func(r chi.Router) {
		r.Get("/", apphttp.HandleError(h.list))
		r.Post("/", apphttp.HandleError(h.add))
		r.Route("/{selector}", func(r chi.Router) {
			r.Get("/", apphttp.HandleError(h.get))
			r.Delete("/", apphttp.HandleError(h.remove))
			r.Get("/stats", apphttp.HandleError(h.stats))
			r.Post("/allow-from", apphttp.HandleError(h.allowFrom))
			r.Post("/stop-from", apphttp.HandleError(h.stopFrom))
			r.Post("/allow-to", apphttp.HandleError(h.allowTo))
			r.Post("/stop-to", apphttp.HandleError(h.stopTo))
			r.Post("/gas-limit", apphttp.HandleError(h.setGasLimit))
		})
	})
}

// ChainResponse is the JSON projection of a registry entry. Selectors
// are serialized as strings; several production selectors exceed the
// precision JSON numbers survive in JavaScript clients.
type ChainResponse struct {
	Selector   uint64 `json:"selector,string"`
	AllowFrom  bool   `json:"allow_from"`
	AllowTo    bool   `json:"allow_to"`
	PeerTeller string `json:"peer_teller"`
	GasLimit   uint64 `json:"gas_limit"`
	MinGas     uint64 `json:"min_gas"`
}

func toChainResponse(c *db.Chain) ChainResponse {
	return ChainResponse{
		Selector:   c.Selector,
		AllowFrom:  c.AllowFrom,
		AllowTo:    c.AllowTo,
		PeerTeller: c.PeerTeller.Hex(),
		GasLimit:   c.GasLimit,
		MinGas:     c.MinGas,
	}
}

type addChainRequest struct {
	Selector   uint64 `json:"selector,string"`
	AllowFrom  bool   `json:"allow_from"`
	AllowTo    bool   `json:"allow_to"`
	PeerTeller string `json:"peer_teller"`
	GasLimit   uint64 `json:"gas_limit"`
	MinGas     uint64 `json:"min_gas"`
}

type allowFromRequest struct {
	PeerTeller string `json:"peer_teller"`
}

type allowToRequest struct {
	PeerTeller string `json:"peer_teller"`
	GasLimit   uint64 `json:"gas_limit"`
}

type gasLimitRequest struct {
	GasLimit uint64 `json:"gas_limit"`
}

func (h *HTTP) add(w http.ResponseWriter, r *http.Request) error {
	var req addChainRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	peer, err := parseAddress(req.PeerTeller, "peer_teller")
	if err != nil {
		return err
	}

	chain, err := h.registry.AddChain(r.Context(), actor(r), AddChainParams{
		Selector:   req.Selector,
		AllowFrom:  req.AllowFrom,
		AllowTo:    req.AllowTo,
		PeerTeller: peer,
		GasLimit:   req.GasLimit,
		MinGas:     req.MinGas,
	})
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusCreated, toChainResponse(chain))
	return nil
}

func (h *HTTP) remove(w http.ResponseWriter, r *http.Request) error {
	selector, err := selectorParam(r)
	if err != nil {
		return err
	}
	if err := h.registry.RemoveChain(r.Context(), actor(r), selector); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) allowFrom(w http.ResponseWriter, r *http.Request) error {
	selector, err := selectorParam(r)
	if err != nil {
		return err
	}
	var req allowFromRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	peer, err := parseAddress(req.PeerTeller, "peer_teller")
	if err != nil {
		return err
	}

	chain, err := h.registry.AllowMessagesFrom(r.Context(), actor(r), selector, peer)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, toChainResponse(chain))
	return nil
}

func (h *HTTP) stopFrom(w http.ResponseWriter, r *http.Request) error {
	selector, err := selectorParam(r)
	if err != nil {
		return err
	}

	chain, err := h.registry.StopMessagesFrom(r.Context(), actor(r), selector)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, toChainResponse(chain))
	return nil
}

func (h *HTTP) allowTo(w http.ResponseWriter, r *http.Request) error {
	selector, err := selectorParam(r)
	if err != nil {
		return err
	}
	var req allowToRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	peer, err := parseAddress(req.PeerTeller, "peer_teller")
	if err != nil {
		return err
	}

	chain, err := h.registry.AllowMessagesTo(r.Context(), actor(r), selector, peer, req.GasLimit)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, toChainResponse(chain))
	return nil
}

func (h *HTTP) stopTo(w http.ResponseWriter, r *http.Request) error {
	selector, err := selectorParam(r)
	if err != nil {
		return err
	}

	chain, err := h.registry.StopMessagesTo(r.Context(), actor(r), selector)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, toChainResponse(chain))
	return nil
}

func (h *HTTP) setGasLimit(w http.ResponseWriter, r *http.Request) error {
	selector, err := selectorParam(r)
	if err != nil {
		return err
	}
	var req gasLimitRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	chain, err := h.registry.SetGasLimit(r.Context(), actor(r), selector, req.GasLimit)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, toChainResponse(chain))
	return nil
}

func (h *HTTP) get(w http.ResponseWriter, r *http.Request) error {
	selector, err := selectorParam(r)
	if err != nil {
		return err
	}

	chain, err := h.registry.Get(r.Context(), selector)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, toChainResponse(chain))
	return nil
}

func (h *HTTP) list(w http.ResponseWriter, r *http.Request) error {
	chains, err := h.registry.List(r.Context())
	if err != nil {
		return err
	}

	resp := make([]ChainResponse, 0, len(chains))
	for _, c := range chains {
		resp = append(resp, toChainResponse(c))
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) stats(w http.ResponseWriter, r *http.Request) error {
	selector, err := selectorParam(r)
	if err != nil {
		return err
	}

	stats, err := h.registry.Stats(r.Context(), selector)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, stats)
	return nil
}

func (h *HTTP) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// actor returns the authenticated caller, or nil for anonymous requests.
func actor(r *http.Request) *auth.Actor {
	a, _ := auth.ActorFromContext(r.Context())
	return a
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

func selectorParam(r *http.Request) (uint64, error) {
	selector, err := strconv.ParseUint(chi.URLParam(r, "selector"), 10, 64)
	if err != nil {
		return 0, apperrors.BadRequestError(err, "invalid chain selector")
	}
	return selector, nil
}

func parseAddress(raw, field string) (common.Address, error) {
	if !auth.ValidateEVMAddress(raw) {
		return common.Address{}, apperrors.BadRequestError(nil, "invalid "+field)
	}
	return common.HexToAddress(raw), nil
}
