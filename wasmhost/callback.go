package wasmhost

import (
	"github.com/teranos/fsasync/errors"
	"github.com/teranos/fsasync/host"
	"github.com/teranos/fsasync/logger"
	"github.com/tetratelabs/wazero/api"
)

// guestCallback is a callback token owned by the guest. The guest keeps its
// own token table, so there is nothing to free on the host side.
type guestCallback struct {
	engine *Engine
	token  uint32
	done   bool
}

// Invoke delivers (token, id, status) to the guest's fsasync_callback export.
func (c *guestCallback) Invoke(t host.Thread, id string, status int) error {
	t.Assert()
	if c.done {
		return errors.Newf("callback token %d already consumed", c.token)
	}
	c.done = true

	e := c.engine
	if err := e.deliver(c.token, id, status); err != nil {
		return err
	}
	e.delivered++
	return nil
}

// Release drops the token without calling into the guest.
func (c *guestCallback) Release(t host.Thread) {
	t.Assert()
	if c.done {
		return
	}
	c.done = true
	c.engine.released++
	c.engine.logger.Debugw("released guest callback", logger.FieldToken, c.token)
}

// deliver copies id into guest memory, calls fsasync_callback and frees the
// copy again.
func (e *Engine) deliver(token uint32, id string, status int) error {
	ctx := e.ctx
	mod := e.guest

	callbackFn := mod.ExportedFunction(CallbackExport)
	if callbackFn == nil {
		return errors.Newf("wasm: missing export %q", CallbackExport)
	}

	idBytes := []byte(id)
	idSize := uint64(len(idBytes))

	var idPtr uint64
	if idSize > 0 {
		allocFn := mod.ExportedFunction(allocExport)
		freeFn := mod.ExportedFunction(freeExport)
		if allocFn == nil || freeFn == nil {
			return errors.Newf("wasm: missing export %q or %q", allocExport, freeExport)
		}

		results, err := allocFn.Call(ctx, idSize)
		if err != nil {
			return errors.Wrapf(err, "wasm alloc for %s (size=%d)", CallbackExport, idSize)
		}
		idPtr = results[0]
		if idPtr == 0 {
			return errors.Newf("wasm alloc returned null for %s (size=%d)", CallbackExport, idSize)
		}
		defer func() {
			if _, err := freeFn.Call(ctx, idPtr, idSize); err != nil {
				e.logger.Warnw("wasm memory leak: failed to free callback id",
					logger.FieldPtr, idPtr, logger.FieldSize, idSize, logger.FieldError, err)
			}
		}()

		if !mod.Memory().Write(uint32(idPtr), idBytes) {
			return errors.Wrapf(errors.ErrGuestMemory, "wasm %s memory write out of range at ptr=%d size=%d", CallbackExport, idPtr, idSize)
		}
	}

	if _, err := callbackFn.Call(ctx, uint64(token), idPtr, idSize, api.EncodeI32(int32(status))); err != nil {
		return errors.Wrapf(err, "wasm call %s (token=%d)", CallbackExport, token)
	}
	return nil
}
