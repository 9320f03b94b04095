package patch

import (
	"github.com/blobstash/blobstash.go/pkg/models"
)

// Diff returns the operations transforming from into to.
//
// Objects are compared key by key: removals and in-place changes follow the
// key order of from, additions the key order of to. Values of the same
// container kind are diffed recursively, anything else is replaced whole.
// Lists are addressed positionally: the common prefix is diffed element-wise,
// new trailing elements are added in ascending order and surplus elements
// are removed from the highest index down so every path stays valid.
// Values are compared in their wire form, so an attachment pointer equals a
// string holding the same pointer text.
func Diff(from, to models.Value) Patch {
	var p Patch
	diffValue(&p, "", from, to)
	return p
}

// DiffObjects is Diff for two documents.
func DiffObjects(from, to *models.Object) Patch {
	return Diff(models.ObjectValue(from), models.ObjectValue(to))
}

func diffValue(p *Patch, path string, from, to models.Value) {
	if from.Equal(to) {
		return
	}

	if fo, ok := from.AsObject(); ok {
		if tobj, ok := to.AsObject(); ok {
			diffObject(p, path, fo, tobj)
			return
		}
	}
	if fl, ok := from.AsList(); ok {
		if tl, ok := to.AsList(); ok {
			diffList(p, path, fl, tl)
			return
		}
	}

	*p = append(*p, Operation{Op: OpReplace, Path: path, Value: to.Clone()})
}

func diffObject(p *Patch, path string, from, to *models.Object) {
	from.Range(func(key string, fv models.Value) bool {
		tv, ok := to.Get(key)
		if !ok {
			*p = append(*p, Operation{Op: OpRemove, Path: childPath(path, key)})
			return true
		}
		diffValue(p, childPath(path, key), fv, tv)
		return true
	})

	to.Range(func(key string, tv models.Value) bool {
		if !from.Has(key) {
			*p = append(*p, Operation{Op: OpAdd, Path: childPath(path, key), Value: tv.Clone()})
		}
		return true
	})
}

func diffList(p *Patch, path string, from, to []models.Value) {
	common := len(from)
	if len(to) < common {
		common = len(to)
	}

	for i := 0; i < common; i++ {
		diffValue(p, indexPath(path, i), from[i], to[i])
	}

	for i := common; i < len(to); i++ {
		*p = append(*p, Operation{Op: OpAdd, Path: indexPath(path, i), Value: to[i].Clone()})
	}

	for i := len(from) - 1; i >= common; i-- {
		*p = append(*p, Operation{Op: OpRemove, Path: indexPath(path, i)})
	}
}
