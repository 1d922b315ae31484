package redoubt

import (
	"github.com/memparanoid/redoubt/audit"
)

// The access operations are package-level generic functions rather than
// methods because a method cannot introduce the callback's result type
// parameter. Generated per-field accessors wrap these with the field
// index and selector baked in.
//
// Every callback returns a plain value, never an error: by the time it
// runs, the plaintext is already materialized, and a half-applied
// mutation has no sound reseal. Fallible work belongs in the
// leak-operate-commit pattern. Callbacks must not retain references to
// the plaintext past their return.

// Open decrypts the whole payload, runs f against it, then reseals every
// slot under fresh nonces and returns f's result. The view is not
// write-protected: Open and OpenMut differ only in the audit action they
// record, and any change f makes is resealed.
func Open[T Payload, R any](b *Box[T], f func(T) R) (R, error) {
	return openStruct(b, audit.ActionBoxOpen, f)
}

// OpenMut decrypts the whole payload, runs f against a mutable view,
// reseals every slot under fresh nonces, and returns f's result.
func OpenMut[T Payload, R any](b *Box[T], f func(T) R) (R, error) {
	return openStruct(b, audit.ActionBoxOpenMut, f)
}

func openStruct[T Payload, R any](b *Box[T], action string, f func(T) R) (result R, err error) {
	b.enter()
	defer b.leave()

	t := b.newT()
	// Whatever path exits — error, callback panic — the plaintext
	// scratch dies here.
	defer t.Destroy()

	for i := range b.sizes {
		if err = b.decodeField(t, i); err != nil {
			b.log(action, false, map[string]interface{}{"slot": i, "error": err.Error()})
			return result, err
		}
	}

	result = f(t)

	// Stage every reseal before publishing any of them: a failure in
	// here leaves the live arena byte-for-byte untouched.
	if err = b.sealAllInto(b.stage, t); err != nil {
		b.log(action, false, map[string]interface{}{"error": err.Error()})
		return result, err
	}
	for i := range b.sizes {
		b.commitField(i)
	}

	b.log(action, true, nil)
	return result, nil
}

// OpenField decrypts only slot idx, runs f against the selected field of
// a scratch payload, reseals the slot under a fresh nonce, and returns
// f's result. sel projects the payload to the field the generated
// accessor is bound to.
func OpenField[T Payload, F any, R any](b *Box[T], idx int, sel func(T) F, f func(F) R) (R, error) {
	return openField(b, audit.ActionFieldOpen, idx, sel, f)
}

// OpenFieldMut is OpenField with mutation intent; the field view may be
// modified in place and the modified value is what gets resealed.
func OpenFieldMut[T Payload, F any, R any](b *Box[T], idx int, sel func(T) F, f func(F) R) (R, error) {
	return openField(b, audit.ActionFieldOpenMut, idx, sel, f)
}

func openField[T Payload, F any, R any](b *Box[T], action string, idx int, sel func(T) F, f func(F) R) (result R, err error) {
	b.enter()
	defer b.leave()
	b.checkIndex(idx)

	t := b.newT()
	defer t.Destroy()

	if err = b.decodeField(t, idx); err != nil {
		b.log(action, false, b.fieldMeta(idx, err))
		return result, err
	}

	result = f(sel(t))

	if err = b.encodeField(t, idx); err != nil {
		b.log(action, false, b.fieldMeta(idx, err))
		return result, err
	}
	b.commitField(idx)

	b.log(action, true, b.fieldMeta(idx, nil))
	return result, nil
}

// LeakField decrypts slot idx into an owned copy wrapped in a Leak and
// leaves the slot's ciphertext, nonce, and tag untouched: only the
// scratch copy was drained, so the field can be decrypted again later.
// This is the entry point of the leak-operate-commit pattern.
func LeakField[T Payload, F any](b *Box[T], idx int, sel func(T) F) (*Leak[T, F], error) {
	b.enter()
	defer b.leave()
	b.checkIndex(idx)

	t := b.newT()

	if err := b.decodeField(t, idx); err != nil {
		t.Destroy()
		b.log(audit.ActionFieldLeak, false, b.fieldMeta(idx, err))
		return nil, err
	}

	b.log(audit.ActionFieldLeak, true, b.fieldMeta(idx, nil))
	return newLeak(t, sel(t)), nil
}
