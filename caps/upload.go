package caps

import (
	"encoding/json"
	"io"
	"net/http"
)

// UploadResult is the LLSD-shaped reply an uploader capability sends
// back once the raw bytes have been consumed: a compile/parse status
// plus any diagnostic lines. JSON stands in for LLSD's object notation
// on the wire here (both are simple typed trees); this surface does not
// go through the llsd package.
type UploadResult struct {
	Success bool     `json:"success"`
	ItemID  string   `json:"item_id,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// UploadProcessor consumes raw uploaded bytes and produces the result
// the second-stage handler reports back to the viewer.
type UploadProcessor func(payload []byte) UploadResult

// RegisterUploadCapability implements the two-stage handshake shared by
// UpdateScriptTask, UpdateScriptAgent, and NewFileAgentInventory: the
// first POST (to name's well-known capability) mints a one-shot
// uploader URL and returns it; the second POST, to that uploader URL,
// carries the raw bytes and is answered with UploadResult.
func RegisterUploadCapability(rt *Router, name string, process UploadProcessor) (string, error) {
	return rt.Register(name, false, func(w http.ResponseWriter, r *http.Request, _ string) {
		uploaderURL, err := rt.Register(name+".uploader", true, func(w http.ResponseWriter, r *http.Request, _ string) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			result := process(body)
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(result)
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"uploader": uploaderURL})
	})
}
