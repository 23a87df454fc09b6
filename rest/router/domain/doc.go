// Package domain define contratos e tipos de domínio do roteador REST com rate limit.
//
// Este pacote não depende de net/http nem de implementações concretas.
// Bucket, GlobalAllowance e Handle são estado puro (contadores, fila FIFO, futuro
// de atribuição única); quem decide quando enviar é a camada application.
package domain
