// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - HTTPExchanger: troca via net/http e leitura dos headers X-RateLimit-*
//   - Metrics / MemoryStatsStore / RedisStatsStore: destinos de domain.StatsStore
//   - SemaphorePool: limite de requests de entrada (golang.org/x/sync/semaphore)
package infra
