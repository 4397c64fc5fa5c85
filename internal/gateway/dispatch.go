package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"hearthside.org/internal/auth"
	"hearthside.org/internal/obs"
	"hearthside.org/internal/policy"
	"hearthside.org/internal/resource"
	"hearthside.org/internal/usage"
)

// Dispatch handles every entity operation through a single POST endpoint.
func (a *API) Dispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var env Envelope
	if err := decodeJSON(w, r, &env); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(&env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+validationMessage(err))
		return
	}

	action := policy.Action(env.Action)
	if !policy.KnownAction(env.Action) {
		writeError(w, http.StatusBadRequest, "unknown action "+env.Action)
		return
	}

	desc, registered := a.registry.Lookup(env.Resource)
	if !registered {
		// A resource the matrix names but the registry does not is a
		// declared-but-unbuilt handler, not a caller mistake.
		if _, known := a.matrix.Lookup(env.Resource, action); known {
			writeError(w, http.StatusNotImplemented, "resource not implemented")
			return
		}
		writeError(w, http.StatusBadRequest, "unknown resource "+env.Resource)
		return
	}
	if !desc.Supports(action) {
		writeError(w, http.StatusBadRequest, "action "+env.Action+" not supported for "+env.Resource)
		return
	}

	switch action {
	case policy.ActionGet, policy.ActionUpdate, policy.ActionDelete:
		if strings.TrimSpace(env.ID) == "" {
			writeError(w, http.StatusBadRequest, "id is required for "+env.Action)
			return
		}
	}
	switch action {
	case policy.ActionCreate, policy.ActionUpdate:
		if len(env.Data) == 0 {
			writeError(w, http.StatusBadRequest, "data is required for "+env.Action)
			return
		}
	}

	ident, err := a.resolver.Resolve(r.Context(), credsFromRequest(r))
	if err != nil {
		a.log.Error().Err(err).Msg("identity resolution failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if ident.Level == auth.LevelInvalid {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	dec, ok := a.matrix.Check(env.Resource, action, ident.Level)
	if !ok {
		writeError(w, http.StatusBadRequest, "action "+env.Action+" not supported for "+env.Resource)
		return
	}
	if !dec.Allowed {
		if ident.Method == auth.MethodNone {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}

	req := resource.Request{
		Identity:  ident,
		Entry:     dec.Entry,
		ID:        env.ID,
		Data:      env.Data,
		Filters:   env.Filters,
		Limit:     env.Limit,
		Offset:    env.Offset,
		OrderBy:   env.OrderBy,
		OrderDesc: orderDesc(env.OrderDir),
	}
	ctx := auth.ContextWithIdentity(r.Context(), ident)

	var (
		data  any
		count *int64
	)
	switch action {
	case policy.ActionList:
		var res resource.ListResult
		res, err = a.engine.List(ctx, desc, req)
		if err == nil {
			data, count = res.Rows, &res.Count
		}
	case policy.ActionGet:
		data, err = a.engine.Get(ctx, desc, req)
	case policy.ActionCreate:
		data, err = a.engine.Create(ctx, desc, req)
	case policy.ActionUpdate:
		data, err = a.engine.Update(ctx, desc, req)
	case policy.ActionDelete:
		data, err = a.engine.Delete(ctx, desc, req)
	}

	code := http.StatusOK
	if err != nil {
		code = a.errorStatus(env, err)
		writeError(w, code, errorMessage(code, err))
		obs.ObserveDispatch(env.Resource, env.Action, code)
		return
	}

	writeData(w, data, count)
	obs.ObserveDispatch(env.Resource, env.Action, code)
	a.meter(ctx, env, ident)
}

func (a *API) errorStatus(env Envelope, err error) int {
	switch {
	case errors.Is(err, resource.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, resource.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, resource.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		a.log.Error().Err(err).
			Str("resource", env.Resource).
			Str("action", env.Action).
			Msg("dispatch failed")
		return http.StatusInternalServerError
	}
}

// errorMessage hides internal error detail behind a generic message; the
// detail was already logged.
func errorMessage(code int, err error) string {
	if code == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

// meter records one successful dispatch in the usage log.
func (a *API) meter(ctx context.Context, env Envelope, ident auth.Identity) {
	a.usage.Append(ctx, usage.Record{
		Vendor:     usage.VendorInternal,
		Category:   "api_" + env.Resource + "_" + env.Action,
		Endpoint:   "/v1/gateway",
		CallerID:   ident.UserID,
		AuthMethod: string(ident.Method),
	})
}

// validationMessage flattens validator errors into something usable by a
// caller without leaking struct internals.
func validationMessage(err error) string {
	return strings.ToLower(err.Error())
}

func credsFromRequest(r *http.Request) auth.Credentials {
	var c auth.Credentials
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			c.Bearer = strings.TrimSpace(h[7:])
		}
	}
	c.APIKey = r.Header.Get("X-API-Key")
	return c
}

func orderDesc(dir string) *bool {
	switch dir {
	case "desc":
		v := true
		return &v
	case "asc":
		v := false
		return &v
	}
	return nil
}
