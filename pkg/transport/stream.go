package transport

// PDUStream is the minimal transport contract the core needs: deliver
// whole, unframed PDU byte slices in either direction (spec.md §6.1:
// "The core consumes unframed PDU bytes; transport adapters strip/add
// KISS").
type PDUStream interface {
	Send(pdu []byte) error
	Recv() ([]byte, error)
	Close() error
}
