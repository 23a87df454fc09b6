// Package router fornece o cliente REST com rate limit por bucket e os adapters
// HTTP (net/http) do gateway.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos (Request, Bucket, GlobalAllowance, Handle) sem net/http
//   - application: casos de uso (resolução de chave, retry, loop por bucket, Router)
//   - infra: implementações concretas (HTTPExchanger, stats em memória/Redis/Prometheus)
//   - router (este pacote): wiring do Client + proxy HTTP + limite de concorrência
//
// Fluxo de uma chamada:
//
//  1. Serviço monta a Request a partir de uma Route (Routes.WebhookGet.NewRequest(id))
//  2. Client.Submit resolve o bucket e enfileira; devolve um Handle
//  3. O loop do bucket espera a cota local e a global, envia e lê X-RateLimit-*
//  4. 429 volta para a cabeça da fila; 5xx/transporte repetem com backoff; 4xx falham
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como UPSTREAM_URL, GLOBAL_LIMIT, EXCHANGE_TIMEOUT e CONCURRENCY_MAX.
package router
