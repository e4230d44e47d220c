package driver

import "github.com/corejit/pyjit/ilgen"

// constLocal returns the reserved local backing constant pool slot index,
// which the host populates before the compiled method runs (spec §3:
// pybc.Code.Constants records only each constant's Kind, never its value,
// so the driver's only honest move is to reserve storage for it).
func (d *Driver) constLocal(index int) (ilgen.Local, bool) {
	if index < 0 || index >= len(d.constPool) {
		return 0, false
	}
	return d.constPool[index], true
}

// nameLocal returns the local holding the external name referenced by a
// LOAD_GLOBAL/STORE_GLOBAL/LOAD_NAME/STORE_NAME/LOAD_ATTR/STORE_ATTR/
// IMPORT_NAME/IMPORT_FROM oparg. pybc.Code carries no names table (the
// same simplification as constLocal: only LocalNames, for Python locals,
// survives into this model), so the driver reserves one object-pointer
// local per distinct oparg value the first time it is referenced and
// leaves it to the host to populate at call time.
func (d *Driver) nameLocal(oparg int) ilgen.Local {
	if l, ok := d.nameSlots[oparg]; ok {
		return l
	}
	l := d.emitter.DefineLocal(ilgen.KindObjectPointer)
	d.nameSlots[oparg] = l
	return l
}

// globalsLocal returns the local holding the function's globals dict
// object, populated by the host before the compiled method runs.
func (d *Driver) globalsLocal() ilgen.Local {
	return d.globals
}
