package schema

// Kind distinguishes side-effect-free queries from mutations. The serving
// adapter maps queries to GET and mutations to POST.
type Kind string

const (
	KindQuery    Kind = "query"
	KindMutation Kind = "mutation"
)

// Snapshot is the serialized, reference-resolved schema document published
// for client consumption. Map keys serialize sorted; property order inside
// each node is declaration order.
type Snapshot struct {
	Procedures map[string]ProcedureSchema `json:"procedures"`
	Defs       Definitions                `json:"defs"`
}

// ProcedureSchema is one procedure's entry in the snapshot.
type ProcedureSchema struct {
	Kind   Kind     `json:"kind"`
	Schema IOSchema `json:"schema"`
}

// IOSchema pairs a procedure's input object with its output node.
type IOSchema struct {
	Input  *Node `json:"input"`
	Output *Node `json:"output"`
}
