package http

import (
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, session auth.Session) {
	txs, err := s.transactions.List(r.Context(), session.UserID, parseLimit(r))
	if err != nil {
		writeError(w, r, err, log.OpList, msgNotFound)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, session auth.Session) {
	in, err := readTransactionInput(w, r)
	if err != nil {
		writeError(w, r, err, log.OpCreate, msgNotFound)
		return
	}

	tx, err := s.transactions.Create(r.Context(), session.UserID, in)
	if err != nil {
		writeError(w, r, err, log.OpCreate, msgNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{Message: "Transaction created successfully", ID: tx.ID})
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, session auth.Session) {
	in, err := readTransactionInput(w, r)
	if err != nil {
		writeError(w, r, err, log.OpUpdate, msgNotFound)
		return
	}

	if _, err := s.transactions.Update(r.Context(), session.UserID, r.PathValue("id"), in); err != nil {
		writeError(w, r, err, log.OpUpdate, msgNotFound)
		return
	}
	writeMessage(w, http.StatusOK, "Transaction updated successfully")
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, session auth.Session) {
	if err := s.transactions.Delete(r.Context(), session.UserID, r.PathValue("id")); err != nil {
		writeError(w, r, err, log.OpDelete, msgNotFound)
		return
	}
	writeMessage(w, http.StatusOK, "Transaction deleted successfully")
}

func readTransactionInput(w http.ResponseWriter, r *http.Request) (core.TransactionInput, error) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return core.TransactionInput{}, err
	}
	return req.toInput()
}
