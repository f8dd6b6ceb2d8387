package main

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Upstream de brinquedo para testar o gateway na mão:
//
//	UPSTREAM_URL=http://localhost:8081 go run ./cmd/gateway
//	for i in $(seq 12); do curl -s -o /dev/null -w '%{http_code}\n' localhost:8080/showTela; done
func main() {
	log, _ := zap.NewDevelopment()
	defer func() { _ = log.Sync() }()

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	log.Info("servidor rodando", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, newRouter(log)); err != nil {
		log.Fatal("erro ao subir o servidor", zap.Error(err))
	}
}

func newRouter(log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Get("/showTela", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<h1>Tela do Sistema</h1><p>Requisição recebida com sucesso!</p>"))
		log.Info("alguém acessou /showTela", zap.String("remote", r.RemoteAddr))
	})
	return r
}
