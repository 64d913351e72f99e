package dispatch

import (
	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/handle"
	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/wire"
)

// handleInstanceLookup resolves a named host instance (the empty string
// names the default/root instance) and replies with its object reference.
func (d *Dispatcher) handleInstanceLookup(m *marshal.Marshaller, r *marshal.Reader) (*wire.Frame, error) {
	name, err := r.UTF16String()
	if err != nil {
		return nil, err
	}
	obj, typeID, ok := d.Lookup(name)
	if !ok {
		return nil, cos.NewErrNotFound("instance %q", name)
	}
	w := marshal.NewWriter()
	if err := m.WriteObjectRef(w, typeID, obj); err != nil {
		return nil, err
	}
	return &wire.Frame{Kind: wire.KindObjectRef, Payload: w.Bytes()}, nil
}

func (d *Dispatcher) handleAddRef(conn *Connection, r *marshal.Reader) (*wire.Frame, error) {
	h, err := r.U64()
	if err != nil {
		return nil, err
	}
	if err := conn.Handles.AddRefHandle(handle.Handle(h)); err != nil {
		return nil, err
	}
	return ackFrame(), nil
}

func (d *Dispatcher) handleAddRefList(conn *Connection, r *marshal.Reader) (*wire.Frame, error) {
	n, err := r.I32()
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < n; i++ {
		h, err := r.U64()
		if err != nil {
			return nil, err
		}
		if err := conn.Handles.AddRefHandle(handle.Handle(h)); err != nil {
			return nil, err
		}
	}
	return ackFrame(), nil
}

func (d *Dispatcher) handleDropRef(conn *Connection, r *marshal.Reader) (*wire.Frame, error) {
	h, err := r.U64()
	if err != nil {
		return nil, err
	}
	if err := conn.Handles.DropRef(handle.Handle(h)); err != nil {
		return nil, err
	}
	return ackFrame(), nil
}

func (d *Dispatcher) handleDropRefList(conn *Connection, r *marshal.Reader) (*wire.Frame, error) {
	n, err := r.I32()
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < n; i++ {
		h, err := r.U64()
		if err != nil {
			return nil, err
		}
		if err := conn.Handles.DropRef(handle.Handle(h)); err != nil {
			return nil, err
		}
	}
	return ackFrame(), nil
}
