package httpapi

import (
	"net/http"
	"sort"
	"strings"
)

// ControlDoc describes one operator control and its keyboard shortcut.
type ControlDoc struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Command     string `json:"command"`
	Shortcut    string `json:"shortcut,omitempty"`
}

var defaultControlDocs = []ControlDoc{
	{
		ID:          "pause",
		Label:       "Pause / Resume",
		Description: "Send stop to halt the simulation, or start to resume it.",
		Command:     "stop | start",
		Shortcut:    "Space, P",
	},
	{
		ID:          "reset",
		Label:       "Reset",
		Description: "Restart the simulation from an empty intersection.",
		Command:     "reset",
		Shortcut:    "R",
	},
	{
		ID:          "density",
		Label:       "Traffic Density",
		Description: "Set vehicle spawn density between 0.1 and 0.8 in steps of 0.1.",
		Command:     "set_density",
		Shortcut:    "Arrow Up / Arrow Down",
	},
}

// ControlDocs returns a sorted copy of the control documentation.
func ControlDocs() []ControlDoc {
	docs := append([]ControlDoc(nil), defaultControlDocs...)
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Label == docs[j].Label {
			return strings.Compare(docs[i].ID, docs[j].ID) < 0
		}
		return strings.Compare(docs[i].Label, docs[j].Label) < 0
	})
	return docs
}

// ControlDocsHandler serves ControlDocs as JSON.
func (h *HandlerSet) ControlDocsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, ControlDocs())
	}
}
