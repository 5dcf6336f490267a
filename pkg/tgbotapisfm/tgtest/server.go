// Package tgtest поднимает поддельный Bot API для тестов ботов на tgbotapisfm.
package tgtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

const Token = "123:test"

// Call один запрос к API
type Call struct {
	Method string
	Params url.Values
	Files  map[string][]byte // имя поля -> содержимое
}

// Server записывает все вызовы и отвечает успешными заглушками
type Server struct {
	*httptest.Server

	mu    sync.Mutex
	calls []Call
}

func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Endpoint адрес в формате tgbotapi.APIEndpoint
func (s *Server) Endpoint() string {
	return s.URL + "/bot%s/%s"
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	call := Call{Method: method, Files: map[string][]byte{}}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(32 << 20); err == nil {
			call.Params = url.Values(r.MultipartForm.Value)
			for field, headers := range r.MultipartForm.File {
				f, err := headers[0].Open()
				if err != nil {
					continue
				}
				call.Files[field], _ = io.ReadAll(f)
				f.Close()
			}
		}
	} else {
		_ = r.ParseForm()
		call.Params = r.PostForm
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result(call)})
}

func result(call Call) any {
	switch call.Method {
	case "getMe":
		return map[string]any{"id": 1, "is_bot": true, "first_name": "registry", "username": "registry_bot"}
	case "getFile":
		return map[string]any{"file_id": call.Params.Get("file_id"), "file_path": "documents/file.xlsx"}
	case "answerCallbackQuery", "deleteMessage":
		return true
	}
	return map[string]any{
		"message_id": 1,
		"date":       0,
		"chat":       map[string]any{"id": 1, "type": "private"},
	}
}

// Calls вызовы метода method; пустой method: все вызовы, кроме getMe
func (s *Server) Calls(method string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, 0, len(s.calls))
	for _, c := range s.calls {
		if (method == "" && c.Method != "getMe") || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Texts тексты отправленных сообщений по порядку
func (s *Server) Texts() []string {
	var out []string
	for _, c := range s.Calls("sendMessage") {
		out = append(out, c.Params.Get("text"))
	}
	return out
}

// LastText текст последнего отправленного сообщения
func (s *Server) LastText() string {
	texts := s.Texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (s *Server) Reset() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}
