// Copyright 2025 the ProtectedVM Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package exceptions implements the firmware's exception vector handlers:
// syndrome classification, dispatch of the two serviceable data-abort
// classes to the memory tracker, and the uniform fail-stop response (report,
// then reboot) for everything else.
//
// Of the eight vector slots, only the same-level synchronous exception is
// recoverable; interrupts, system errors, and every lower-level trap reboot
// unconditionally. There is no "log without reboot" outcome.
package exceptions

import (
	"github.com/pkg/errors"
	"github.com/protectedvm/pvmfw/console"
	"github.com/protectedvm/pvmfw/memory"
	"github.com/protectedvm/pvmfw/platform"
)

var (
	// ErrPageTableUnavailable reports that the tracker lock was contended.
	ErrPageTableUnavailable = errors.New("page table is not available")
	// ErrPageTableNotInitialized reports a fault before tracker registration.
	ErrPageTableNotInitialized = errors.New("page table is not initialized")
	// ErrUnknownException reports a fault class this firmware never services.
	ErrUnknownException = errors.New("unknown exception occurred, not handled")
)

// Handler services the eight exception vector entry points. The runtime owns
// the memory tracker and hands the handler its guard at installation time, so
// the fault path dereferences a fixed, uncontended reference; the only
// locking is the guard's own non-blocking try-acquire.
type Handler struct {
	machine platform.Machine
	guard   *memory.Guard
	sink    *console.Sink
}

// Install wires a Handler to the machine state, tracker guard, and
// diagnostic sink. It is called once, before exceptions are unmasked.
func Install(machine platform.Machine, guard *memory.Guard, sink *console.Sink) (*Handler, error) {
	if machine == nil {
		return nil, errors.New("nil machine")
	}
	if guard == nil {
		return nil, errors.New("nil memory guard")
	}
	if sink == nil {
		return nil, errors.New("nil diagnostic sink")
	}
	return &Handler{machine: machine, guard: guard, sink: sink}, nil
}

func (h *Handler) withTracker(do func(memory.Tracker) error) error {
	t, release, err := h.guard.TryAcquire()
	switch err {
	case nil:
	case memory.ErrContended:
		return ErrPageTableUnavailable
	case memory.ErrUninitialized:
		return ErrPageTableNotInitialized
	default:
		return err
	}
	defer release()
	// Tracker failures are internal errors: the fault was of a serviceable
	// class but the paging subsystem could not repair it.
	return errors.Wrap(do(t), "failed to update page table")
}

func (h *Handler) handleTranslationFault(far uint64) error {
	return h.withTracker(func(t memory.Tracker) error {
		return t.HandleMMIOFault(far)
	})
}

func (h *Handler) handlePermissionFault(far uint64) error {
	return h.withTracker(func(t memory.Tracker) error {
		return t.HandlePermissionFault(far)
	})
}

// handleException routes a classified fault. Translation faults demand-map
// MMIO guard pages; permission faults mark DBM-managed pages dirty on write.
// Everything else is reported, never serviced.
func (h *Handler) handleException(esr Esr, far uint64) error {
	switch esr.Class {
	case TranslationFault:
		return h.handleTranslationFault(far)
	case PermissionFault:
		return h.handlePermissionFault(far)
	default:
		return ErrUnknownException
	}
}

// handlingUARTException reports whether the fault being handled is an
// external abort on the console UART's own page. Printing the failure would
// touch that same page and fault again, so the report is skipped.
func handlingUARTException(esr Esr, far uint64) bool {
	return esr.Class == SyncExternalAbort && memory.PageOf(far) == memory.PageOf(platform.UARTBase)
}

// SyncExceptionCurrent is the same-level synchronous exception entry, the
// only recoverable vector slot. On success the handler returns normally and
// hardware re-executes the faulting instruction; on any failure it reports
// (unless the report itself would re-fault) and reboots.
func (h *Handler) SyncExceptionCurrent(elr, _ uint64) {
	// Suppress leveled logging while the fault is in flight; a log write to
	// the memory-mapped UART could raise a nested fault.
	release := h.sink.Suppress()
	defer release()

	esr := ClassifyEsr(h.machine.ReadESR())
	far := h.machine.ReadFAR()

	if err := h.handleException(esr, far); err != nil {
		if !handlingUARTException(esr, far) {
			h.sink.Eprintf("sync_exception_current")
			h.sink.Eprintf("%v", err)
			h.sink.Eprintf("%v, far=%#08x, elr=%#08x", esr, far, elr)
		}
		h.machine.Reboot()
	}
}

// IrqCurrent is the same-level IRQ entry. Never serviced.
func (h *Handler) IrqCurrent(_, _ uint64) {
	h.sink.Eprintf("irq_current")
	h.machine.Reboot()
}

// FiqCurrent is the same-level FIQ entry. Never serviced.
func (h *Handler) FiqCurrent(_, _ uint64) {
	h.sink.Eprintf("fiq_current")
	h.machine.Reboot()
}

// SerrCurrent is the same-level SError entry. Never serviced.
func (h *Handler) SerrCurrent(_, _ uint64) {
	esr := h.machine.ReadESR()
	h.sink.Eprintf("serr_current")
	h.sink.Eprintf("esr=%#08x", esr)
	h.machine.Reboot()
}

// SyncLower is the lower-level synchronous exception entry. Nothing should
// trap from a lower exception level while this firmware runs.
func (h *Handler) SyncLower(_, _ uint64) {
	esr := h.machine.ReadESR()
	h.sink.Eprintf("sync_lower")
	h.sink.Eprintf("esr=%#08x", esr)
	h.machine.Reboot()
}

// IrqLower is the lower-level IRQ entry. Never serviced.
func (h *Handler) IrqLower(_, _ uint64) {
	h.sink.Eprintf("irq_lower")
	h.machine.Reboot()
}

// FiqLower is the lower-level FIQ entry. Never serviced.
func (h *Handler) FiqLower(_, _ uint64) {
	h.sink.Eprintf("fiq_lower")
	h.machine.Reboot()
}

// SerrLower is the lower-level SError entry. Never serviced.
func (h *Handler) SerrLower(_, _ uint64) {
	esr := h.machine.ReadESR()
	h.sink.Eprintf("serr_lower")
	h.sink.Eprintf("esr=%#08x", esr)
	h.machine.Reboot()
}
