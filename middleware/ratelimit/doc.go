// Package ratelimit fornece adapters HTTP (net/http) para rate limit por janela fixa
// e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão admit/reject, acquire/timeout) sem net/http
//   - infra: implementações concretas (registro de janela fixa, semáforo, stats)
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai a chave do cliente (header/XFF/RemoteAddr, com chave sentinela se nada servir)
//  2. Chama a camada application para obter a decisão
//  3. Se rejeitado, responde 429 com "Rate limit exceeded. Try again later." sem chamar o próximo handler
//  4. Se admitido, chama o próximo handler (ex: reverse proxy)
//
// Cada cliente pode fazer RATE_MAX_REQUESTS requisições por RATE_WINDOW. A janela começa
// na primeira requisição depois do último reset, então perto da virada uma rajada de até
// 2x a cota passa.
package ratelimit
