package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cwbudde/gonlopt/internal/problems"
)

// ProblemInfo describes a registered problem
type ProblemInfo struct {
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Dim          int       `json:"dim"`
	Sense        string    `json:"sense"`
	Algorithm    string    `json:"algorithm"`
	Constraints  int       `json:"constraints"`
	X0           []float64 `json:"x0"`
	Optimum      []float64 `json:"optimum,omitempty"`
	OptimumValue float64   `json:"optimumValue"`
}

// listProblems describes every registered problem, sorted by name
func listProblems() []ProblemInfo {
	names := problems.Names()
	infos := make([]ProblemInfo, 0, len(names))
	for _, name := range names {
		p, err := problems.Get(name)
		if err != nil {
			continue
		}
		infos = append(infos, ProblemInfo{
			Name:         p.Name,
			Description:  p.Description,
			Dim:          p.Dim,
			Sense:        p.Sense.String(),
			Algorithm:    p.Algorithm.Key(),
			Constraints:  len(p.Constraints),
			X0:           p.X0,
			Optimum:      p.Optimum,
			OptimumValue: p.OptimumValue,
		})
	}
	return infos
}

// writeJSON encodes v as the response body
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
