package fed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/rezsim/rez/cmn/nlog"
	"github.com/rezsim/rez/grid/meta"
)

// MethodCall is the minimal XML-RPC method-call shape this surface
// needs: a method name plus an ordered list of string/i4 params. Full
// XML-RPC structs/arrays are not needed by any of the four methods this
// surface serves.
type MethodCall struct {
	XMLName    xml.Name `xml:"methodCall"`
	MethodName string   `xml:"methodName"`
	Params     []struct {
		Value struct {
			String string `xml:"string"`
			I4     string `xml:"i4"`
		} `xml:"value"`
	} `xml:"params>param"`
}

func (m MethodCall) arg(i int) string {
	if i >= len(m.Params) {
		return ""
	}
	p := m.Params[i].Value
	if p.String != "" {
		return p.String
	}
	return p.I4
}

type methodResponse struct {
	XMLName xml.Name `xml:"methodResponse"`
	Fault   *fault   `xml:"fault,omitempty"`
	Params  []string `xml:"params>param>value>string,omitempty"`
}

type fault struct {
	String string `xml:"value>string"`
}

// Surface serves the federation HTTP surface: POST / for the four
// XML-RPC methods, and POST|PUT|DELETE /agent/<uuid>[/<handle>[/release]]
// for the child/full-agent handshake.
type Surface struct {
	OnExpectUser       func(ctx context.Context, req ChildAgentRequest) error
	OnLogoffUser       func(ctx context.Context, agentID uuid.UUID) error
	OnInstantMessage   func(ctx context.Context, fromID, toID uuid.UUID, message string) error
	OnLoginToSimulator func(ctx context.Context, params MethodCall) (string, error)

	OnCreateChildAgent func(ctx context.Context, agentID uuid.UUID, body []byte) (seedCapURL string, err error)
	OnUpgradeAgent     func(ctx context.Context, agentID uuid.UUID, handle meta.Handle, body []byte) error
	OnReleaseAgent     func(ctx context.Context, agentID uuid.UUID, handle meta.Handle) error

	// TokenSecret, when set, requires a valid bearer token (minted by
	// SignChildAgentToken) naming the same agent on every child-agent
	// creation POST. Nil disables the check, for single-region setups
	// with no peer to authenticate.
	TokenSecret []byte
}

func (s *Surface) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" && r.Method == http.MethodPost {
		s.serveXMLRPC(w, r)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/agent/") {
		s.serveAgent(w, r)
		return
	}
	http.NotFound(w, r)
}

func (s *Surface) serveXMLRPC(w http.ResponseWriter, r *http.Request) {
	var call MethodCall
	if err := xml.NewDecoder(r.Body).Decode(&call); err != nil {
		writeFault(w, err.Error())
		return
	}

	switch call.MethodName {
	case "expect_user":
		agentID, err := uuid.Parse(call.arg(0))
		if err != nil {
			writeFault(w, "bad agent_id")
			return
		}
		if err := s.OnExpectUser(r.Context(), ChildAgentRequest{AgentID: agentID}); err != nil {
			writeFault(w, err.Error())
			return
		}
		writeOK(w)
	case "logoff_user":
		agentID, err := uuid.Parse(call.arg(0))
		if err != nil {
			writeFault(w, "bad agent_id")
			return
		}
		if err := s.OnLogoffUser(r.Context(), agentID); err != nil {
			writeFault(w, err.Error())
			return
		}
		writeOK(w)
	case "grid_instant_message":
		fromID, err1 := uuid.Parse(call.arg(0))
		toID, err2 := uuid.Parse(call.arg(1))
		if err1 != nil || err2 != nil {
			writeFault(w, "bad agent id")
			return
		}
		if err := s.OnInstantMessage(r.Context(), fromID, toID, call.arg(2)); err != nil {
			writeFault(w, err.Error())
			return
		}
		writeOK(w)
	case "login_to_simulator":
		resp, err := s.OnLoginToSimulator(r.Context(), call)
		if err != nil {
			writeFault(w, err.Error())
			return
		}
		writeXML(w, methodResponse{Params: []string{resp}})
	default:
		writeFault(w, fmt.Sprintf("unknown method %q", call.MethodName))
	}
}

func (s *Surface) serveAgent(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/agent/"), "/")
	agentID, err := uuid.Parse(parts[0])
	if err != nil {
		http.Error(w, "bad agent id", http.StatusBadRequest)
		return
	}

	var handle meta.Handle
	var release bool
	if len(parts) > 1 && parts[1] != "" {
		h, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			http.Error(w, "bad region handle", http.StatusBadRequest)
			return
		}
		handle = meta.Handle(h)
	}
	if len(parts) > 2 && parts[2] == "release" {
		release = true
	}

	body, _ := io.ReadAll(r.Body)

	switch r.Method {
	case http.MethodPost:
		if s.TokenSecret != nil {
			tokenAgent, _, err := VerifyChildAgentToken(s.TokenSecret, bearerToken(r))
			if err != nil || tokenAgent != agentID {
				http.Error(w, "invalid child-agent token", http.StatusUnauthorized)
				return
			}
		}
		seedCap, err := s.OnCreateChildAgent(r.Context(), agentID, body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Write([]byte(seedCap))
	case http.MethodPut:
		if err := s.OnUpgradeAgent(r.Context(), agentID, handle, body); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		if !release {
			http.Error(w, "DELETE requires .../release", http.StatusBadRequest)
			return
		}
		if err := s.OnReleaseAgent(r.Context(), agentID, handle); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func bearerToken(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeOK(w http.ResponseWriter) {
	writeXML(w, methodResponse{Params: []string{"OK"}})
}

func writeFault(w http.ResponseWriter, reason string) {
	writeXML(w, methodResponse{Fault: &fault{String: reason}})
}

func writeXML(w http.ResponseWriter, resp methodResponse) {
	w.Header().Set("Content-Type", "text/xml")
	enc := xml.NewEncoder(w)
	if err := enc.Encode(resp); err != nil {
		nlog.Errorf("xml-rpc encode: %v", err)
	}
}
