package http

import (
	"bytes"
	"net/http"

	"ledger/internal/core"
	"ledger/internal/export"
	applog "ledger/internal/log"
)

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.ledger.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeAPIError(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toCustomersJSON(customers)})
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.ledger.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAPIError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": toCustomerJSON(c)})
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	nc, err := ParseNewCustomer(w, r)
	if err != nil {
		writeAPIError(w, r, applog.OpCreate, err)
		return
	}
	c, err := s.ledger.Create(r.Context(), nc)
	if err != nil {
		writeAPIError(w, r, applog.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerJSON(c))
}

func (s *Server) handleReplaceCustomer(w http.ResponseWriter, r *http.Request) {
	nc, err := ParseNewCustomer(w, r)
	if err != nil {
		writeAPIError(w, r, applog.OpReplace, err)
		return
	}
	c, err := s.ledger.Replace(r.Context(), r.PathValue("id"), nc)
	if err != nil {
		writeAPIError(w, r, applog.OpReplace, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerJSON(c))
}

func (s *Server) handlePatchCustomer(w http.ResponseWriter, r *http.Request) {
	patch, err := ParseCustomerPatch(w, r)
	if err != nil {
		writeAPIError(w, r, applog.OpUpdate, err)
		return
	}
	c, err := s.ledger.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeAPIError(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerJSON(c))
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	ok, err := s.ledger.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAPIError(w, r, applog.OpDelete, err)
		return
	}
	if !ok {
		writeAPIError(w, r, applog.OpDelete, core.ErrCustomerNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddPayment(w http.ResponseWriter, r *http.Request) {
	np, err := ParseNewPayment(w, r)
	if err != nil {
		writeAPIError(w, r, applog.OpAddPayment, err)
		return
	}
	c, err := s.ledger.AddPayment(r.Context(), r.PathValue("id"), np)
	if err != nil {
		writeAPIError(w, r, applog.OpAddPayment, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerJSON(c))
}

// handleExportCustomers downloads the listed customers as a CSV sheet.
func (s *Server) handleExportCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.ledger.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeAPIError(w, r, applog.OpExport, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, customers); err != nil {
		applog.FromContext(r.Context()).LogError(r.Context(), "CSV export failed", err, applog.ComponentExport, applog.OpExport, nil)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "export failed"})
		return
	}

	applog.FromContext(r.Context()).WithComponent(applog.ComponentExport).InfoContext(r.Context(), "Customers exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldResults, len(customers))

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(core.Today())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
