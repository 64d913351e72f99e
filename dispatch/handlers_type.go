package dispatch

import (
	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/typereg"
	"github.com/pjrmi/pjrmi-go/wire"
)

func (d *Dispatcher) handleTypeByID(r *marshal.Reader) (*wire.Frame, error) {
	id, err := r.I32()
	if err != nil {
		return nil, err
	}
	td, ok := d.Reg.GetByID(typereg.TypeID(id))
	if !ok {
		return nil, cos.NewErrNotFound("type id %d", id)
	}
	return d.typeDescriptorFrame(td)
}

func (d *Dispatcher) handleTypeByName(m *marshal.Marshaller, r *marshal.Reader) (*wire.Frame, error) {
	name, err := r.UTF16String()
	if err != nil {
		return nil, err
	}
	if !d.Authz.IsClassPermitted(name) {
		return nil, &cos.ErrAccessDenied{Reason: "class " + name + " is not permitted"}
	}
	td, err := d.Reg.GetByName(name)
	if err != nil {
		return nil, err
	}
	return d.typeDescriptorFrame(td)
}

func (d *Dispatcher) typeDescriptorFrame(td *typereg.TypeDescriptor) (*wire.Frame, error) {
	w := marshal.NewWriter()
	encodeTypeDescriptor(w, td)
	return &wire.Frame{Kind: wire.KindTypeDescriptor, Payload: w.Bytes()}, nil
}
