// Package application contém os casos de uso do router: resolução de chave de
// bucket, política de retry, loop de despacho por bucket e a fachada Router.
//
// Ele depende apenas do pacote domain e não conhece net/http; a troca com o
// servidor chega por domain.Exchanger.
// Ex.: Router.Submit(req) devolve um *domain.Handle resolvido de forma assíncrona.
package application
