package memberships

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/shelf/pkg/httputil"
	"github.com/platinummonkey/shelf/pkg/items"
	"github.com/platinummonkey/shelf/pkg/observability"
)

// PermissionResolver is the read side handlers depend on. Both Resolver and
// CachedResolver satisfy it.
type PermissionResolver interface {
	Resolve(ctx context.Context, accountID, itemID string) (PermissionLevel, error)
}

// AccountHeader carries the acting account's id. An absent or empty header
// means the caller is anonymous. Authentication itself happens upstream.
const AccountHeader = "X-Account-ID"

// Handlers exposes the item tree and membership engine over HTTP.
type Handlers struct {
	service  *Service
	items    *items.Store
	recycler *items.Recycler
	resolver PermissionResolver
	requests *RequestStore
	logger   *observability.Logger
}

// NewHandlers creates the HTTP handlers
func NewHandlers(service *Service, itemStore *items.Store, recycler *items.Recycler, resolver PermissionResolver, requests *RequestStore, logger *observability.Logger) *Handlers {
	return &Handlers{
		service:  service,
		items:    itemStore,
		recycler: recycler,
		resolver: resolver,
		requests: requests,
		logger:   logger,
	}
}

// RegisterRoutes configures all routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	// Item tree
	router.HandleFunc("/items", h.CreateRootItem).Methods("POST")
	router.HandleFunc("/items/{id}", h.GetItem).Methods("GET")
	router.HandleFunc("/items/{id}/children", h.CreateChildItem).Methods("POST")
	router.HandleFunc("/items/{id}/children", h.ListChildren).Methods("GET")
	router.HandleFunc("/items/{id}/descendants", h.ListDescendants).Methods("GET")

	// Recycle bin
	router.HandleFunc("/items/{id}/recycle", h.RecycleItem).Methods("POST")
	router.HandleFunc("/items/{id}/restore", h.RestoreItem).Methods("POST")
	router.HandleFunc("/items/recycle", h.RecycleBatch).Methods("POST")
	router.HandleFunc("/items/restore", h.RestoreBatch).Methods("POST")
	router.HandleFunc("/recycle-bin", h.ListRecycleBin).Methods("GET")

	// Visibility markers
	router.HandleFunc("/items/{id}/visibility", h.SetVisibility).Methods("POST")
	router.HandleFunc("/items/{id}/visibility/{type}", h.UnsetVisibility).Methods("DELETE")

	// Memberships
	router.HandleFunc("/items/{id}/memberships", h.CreateMembership).Methods("POST")
	router.HandleFunc("/items/{id}/memberships", h.ListMemberships).Methods("GET")
	router.HandleFunc("/memberships/{id}", h.UpdateMembership).Methods("PUT")
	router.HandleFunc("/memberships/{id}", h.DeleteMembership).Methods("DELETE")

	// Permission resolution
	router.HandleFunc("/items/{id}/permission", h.ResolvePermission).Methods("GET")

	// Membership requests
	router.HandleFunc("/items/{id}/requests", h.CreateRequest).Methods("POST")
	router.HandleFunc("/items/{id}/requests", h.ListRequests).Methods("GET")
}

// actor returns the acting account id, "" for anonymous callers.
func actor(r *http.Request) string {
	return r.Header.Get(AccountHeader)
}

// CreateRootItem creates a top-level item owned by the caller
func (h *Handlers) CreateRootItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	item, err := h.service.CreateRootItem(r.Context(), req.Name, actor(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, item)
}

// CreateChildItem creates an item under an existing parent
func (h *Handlers) CreateChildItem(w http.ResponseWriter, r *http.Request) {
	parentID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	item, err := h.service.CreateChildItem(r.Context(), parentID, req.Name, actor(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, item)
}

// GetItem returns an item the caller can at least read
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	item, err := h.requireLevel(r, itemID, PermissionRead)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, item)
}

// ListChildren returns the direct children of an item
func (h *Handlers) ListChildren(w http.ResponseWriter, r *http.Request) {
	itemID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	item, err := h.requireLevel(r, itemID, PermissionRead)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	children, err := h.items.GetChildren(r.Context(), item.Path, false)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, children)
}

// ListDescendants returns the full live subtree below an item
func (h *Handlers) ListDescendants(w http.ResponseWriter, r *http.Request) {
	itemID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	item, err := h.requireLevel(r, itemID, PermissionRead)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	descendants, err := h.items.GetDescendants(r.Context(), item.Path, false)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, descendants)
}

type subtreeResponse struct {
	ItemID   string `json:"item_id"`
	Affected int64  `json:"affected"`
}

// RecycleItem soft deletes an item and its whole subtree
func (h *Handlers) RecycleItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.requireLevel(r, itemID, PermissionAdmin); err != nil {
		h.writeDomainError(w, err)
		return
	}

	affected, err := h.recycler.Recycle(r.Context(), itemID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, subtreeResponse{ItemID: itemID, Affected: affected})
}

// RestoreItem restores a recycled item and its whole subtree
func (h *Handlers) RestoreItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.requireLevel(r, itemID, PermissionAdmin); err != nil {
		h.writeDomainError(w, err)
		return
	}

	affected, err := h.recycler.Restore(r.Context(), itemID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, subtreeResponse{ItemID: itemID, Affected: affected})
}

type batchResponse struct {
	ItemID   string `json:"item_id"`
	Affected int64  `json:"affected"`
	Error    string `json:"error,omitempty"`
}

// RecycleBatch recycles many items; each entry succeeds or fails on its own
func (h *Handlers) RecycleBatch(w http.ResponseWriter, r *http.Request) {
	h.batch(w, r, h.recycler.RecycleMany)
}

// RestoreBatch restores many items; each entry succeeds or fails on its own
func (h *Handlers) RestoreBatch(w http.ResponseWriter, r *http.Request) {
	h.batch(w, r, h.recycler.RestoreMany)
}

func (h *Handlers) batch(w http.ResponseWriter, r *http.Request, op func(context.Context, []string) []items.BatchResult) {
	var req struct {
		ItemIDs []string `json:"item_ids"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.ItemIDs) == 0 {
		httputil.WriteValidationError(w, "item_ids is required")
		return
	}

	// Authorization is checked per item so one denied entry never blocks
	// the rest of the batch.
	results := make([]batchResponse, 0, len(req.ItemIDs))
	allowed := make([]string, 0, len(req.ItemIDs))
	denied := make(map[string]error, len(req.ItemIDs))
	for _, id := range req.ItemIDs {
		if _, err := h.requireLevel(r, id, PermissionAdmin); err != nil {
			denied[id] = err
			continue
		}
		allowed = append(allowed, id)
	}

	outcomes := op(r.Context(), allowed)
	byID := make(map[string]items.BatchResult, len(outcomes))
	for _, res := range outcomes {
		byID[res.ItemID] = res
	}

	for _, id := range req.ItemIDs {
		if err, ok := denied[id]; ok {
			results = append(results, batchResponse{ItemID: id, Error: err.Error()})
			continue
		}
		res := byID[id]
		entry := batchResponse{ItemID: id, Affected: res.Affected, Error: res.Error}
		results = append(results, entry)
	}

	httputil.WriteSuccess(w, results)
}

// ListRecycleBin lists recycled subtree roots the caller administers
func (h *Handlers) ListRecycleBin(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.items.ListRecycleBin(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	visible := make([]*items.Item, 0, len(deleted))
	for _, item := range deleted {
		level, err := h.resolver.Resolve(r.Context(), actor(r), item.ID)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		if level == PermissionAdmin {
			visible = append(visible, item)
		}
	}
	httputil.WriteSuccess(w, visible)
}

// SetVisibility places a public or hidden marker on an item
func (h *Handlers) SetVisibility(w http.ResponseWriter, r *http.Request) {
	itemID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Type VisibilityType `json:"type"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	v, err := h.service.SetVisibility(r.Context(), itemID, req.Type, actor(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, v)
}

// UnsetVisibility removes a marker from an item
func (h *Handlers) UnsetVisibility(w http.ResponseWriter, r *http.Request) {
	itemID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	vType, ok := httputil.ParsePathStringOrError(w, r, "type")
	if !ok {
		return
	}

	if err := h.service.UnsetVisibility(r.Context(), itemID, VisibilityType(vType), actor(r)); err != nil {
		h.writeDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// CreateMembership grants an account a permission level on an item
func (h *Handlers) CreateMembership(w http.ResponseWriter, r *http.Request) {
	itemID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		AccountID  string          `json:"account_id"`
		Permission PermissionLevel `json:"permission"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.AccountID, "account_id") {
		return
	}

	result, err := h.service.Create(r.Context(), itemID, req.AccountID, req.Permission, actor(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, result)
}

// ListMemberships returns direct and inherited grants for an item
func (h *Handlers) ListMemberships(w http.ResponseWriter, r *http.Request) {
	itemID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	listing, err := h.service.ListForItem(r.Context(), itemID, actor(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, listing)
}

// UpdateMembership changes the permission level of an existing grant
func (h *Handlers) UpdateMembership(w http.ResponseWriter, r *http.Request) {
	membershipID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Permission PermissionLevel `json:"permission"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.service.Update(r.Context(), membershipID, req.Permission, actor(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// DeleteMembership removes a grant, optionally purging the account's grants
// below it (?purge_below=true)
func (h *Handlers) DeleteMembership(w http.ResponseWriter, r *http.Request) {
	membershipID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	purgeBelow, err := httputil.ParseQueryBool(r, "purge_below", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Delete(r.Context(), membershipID, actor(r), purgeBelow)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// ResolvePermission reports the caller's effective level on an item. Admins
// may resolve on behalf of another account via ?account_id=.
func (h *Handlers) ResolvePermission(w http.ResponseWriter, r *http.Request) {
	itemID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	accountID := actor(r)
	if target := httputil.ParseQueryString(r, "account_id", ""); target != "" && target != accountID {
		if _, err := h.requireLevel(r, itemID, PermissionAdmin); err != nil {
			h.writeDomainError(w, err)
			return
		}
		accountID = target
	}

	level, err := h.resolver.Resolve(r.Context(), accountID, itemID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{
		"item_id":    itemID,
		"account_id": accountID,
		"permission": string(level),
	})
}

// CreateRequest records the caller's ask for access to an item
func (h *Handlers) CreateRequest(w http.ResponseWriter, r *http.Request) {
	itemID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	accountID := actor(r)
	if accountID == AnonymousAccountID {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	req := &MembershipRequest{ItemID: itemID, AccountID: accountID}
	if err := h.requests.Create(r.Context(), req); err != nil {
		h.writeDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, req)
}

// ListRequests returns pending access requests for an item's admins
func (h *Handlers) ListRequests(w http.ResponseWriter, r *http.Request) {
	itemID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.requireLevel(r, itemID, PermissionAdmin); err != nil {
		h.writeDomainError(w, err)
		return
	}

	pending, err := h.requests.ListForItem(r.Context(), itemID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, pending)
}

// requireLevel loads the item and checks the caller resolves to at least
// level on it.
func (h *Handlers) requireLevel(r *http.Request, itemID string, level PermissionLevel) (*items.Item, error) {
	item, err := h.items.Get(r.Context(), itemID)
	if err != nil {
		return nil, err
	}
	resolved, err := h.resolver.Resolve(r.Context(), actor(r), itemID)
	if err != nil {
		return nil, err
	}
	if !resolved.AtLeast(level) {
		return nil, ErrInsufficientPermission
	}
	return item, nil
}

// writeDomainError maps engine errors onto HTTP statuses.
func (h *Handlers) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, items.ErrItemNotFound),
		errors.Is(err, ErrMembershipNotFound),
		errors.Is(err, ErrVisibilityNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, ErrInsufficientPermission):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, ErrModifyExistingMembership),
		errors.Is(err, ErrCannotDeleteOnlyAdmin),
		errors.Is(err, items.ErrItemAlreadyDeleted),
		errors.Is(err, items.ErrItemNotDeleted):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, ErrInvalidMembership),
		errors.Is(err, ErrInvalidPermissionLevel),
		errors.Is(err, ErrUnknownPermissionLevel),
		errors.Is(err, ErrUnknownVisibilityType),
		errors.Is(err, ErrCannotModifyGuestItemMembership),
		errors.Is(err, items.ErrInvalidItemName):
		httputil.WriteBadRequest(w, err.Error())
	default:
		h.logger.WithError(err).Error("unhandled error in membership handler")
		httputil.WriteInternalError(w, err)
	}
}
