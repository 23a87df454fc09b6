package domain

// KeyKind distingue uma chave adivinhada localmente de uma confirmada pelo servidor.
type KeyKind uint8

const (
	Provisional KeyKind = iota
	Confirmed
)

// BucketKey identifica um bucket. É comparável e pode ser usada como chave de map.
//
// A chave provisória deriva só de método + template (não do path resolvido), então
// "GET /channels/{id}" com ids diferentes cai no mesmo bucket até a confirmação.
type BucketKey struct {
	Kind  KeyKind
	Value string
}

func ProvisionalKey(method, template string) BucketKey {
	return BucketKey{Kind: Provisional, Value: method + " " + template}
}

func ConfirmedKey(serverID string) BucketKey {
	return BucketKey{Kind: Confirmed, Value: serverID}
}

// KeyFor devolve a chave provisória da request.
func KeyFor(r Request) BucketKey { return ProvisionalKey(r.Method, r.Template) }

func (k BucketKey) IsConfirmed() bool { return k.Kind == Confirmed }

func (k BucketKey) String() string {
	if k.Kind == Confirmed {
		return "bucket:" + k.Value
	}
	return "route:" + k.Value
}
