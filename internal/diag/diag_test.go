// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package diag

import (
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/sponsorkit/sponsorkit/internal/skm"
)

func TestDeduplicator(t *testing.T) {
	key := Key{Sponsorable: "acme", Product: "acme-analyzer", Project: "demo.csproj"}

	t.Run("first push wins", func(t *testing.T) {
		g := NewWithT(t)
		d := New()

		first := Diagnostic{Key: key, Status: skm.StatusExpired, Message: "sponsorship expired"}
		second := Diagnostic{Key: key, Status: skm.StatusValid, Message: "should be dropped"}

		g.Expect(d.Push(first)).To(BeTrue())
		g.Expect(d.Push(second)).To(BeFalse())

		got, ok := d.Peek(key)
		g.Expect(ok).To(BeTrue())
		g.Expect(got.Message).To(Equal("sponsorship expired"))
	})

	t.Run("pop returns exactly once", func(t *testing.T) {
		g := NewWithT(t)
		d := New()

		g.Expect(d.Push(Diagnostic{Key: key, Status: skm.StatusUnknown})).To(BeTrue())

		_, ok := d.Pop(key)
		g.Expect(ok).To(BeTrue())

		_, ok = d.Pop(key)
		g.Expect(ok).To(BeFalse())
		_, ok = d.Peek(key)
		g.Expect(ok).To(BeFalse())
	})

	t.Run("keys are independent", func(t *testing.T) {
		g := NewWithT(t)
		d := New()

		other := Key{Sponsorable: "acme", Product: "acme-analyzer", Project: "other.csproj"}
		g.Expect(d.Push(Diagnostic{Key: key})).To(BeTrue())
		g.Expect(d.Push(Diagnostic{Key: other})).To(BeTrue())

		_, ok := d.Pop(key)
		g.Expect(ok).To(BeTrue())
		_, ok = d.Peek(other)
		g.Expect(ok).To(BeTrue())
	})

	t.Run("concurrent pushes retain a single diagnostic", func(t *testing.T) {
		g := NewWithT(t)
		d := New()

		var wg sync.WaitGroup
		retained := make(chan int, 16)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if d.Push(Diagnostic{Key: key, Message: "racer"}) {
					retained <- i
				}
			}(i)
		}
		wg.Wait()
		close(retained)

		count := 0
		for range retained {
			count++
		}
		g.Expect(count).To(Equal(1))
	})
}

func TestDeduplicator_Classify(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	d := New()
	d.now = func() time.Time { return now }

	t.Run("valid is never downgraded", func(t *testing.T) {
		g := NewWithT(t)

		installed := now.Add(-time.Hour)
		g.Expect(d.Classify(skm.StatusValid, installed)).To(Equal(skm.StatusValid))
	})

	t.Run("fresh install reports unknown", func(t *testing.T) {
		g := NewWithT(t)

		installed := now.Add(-2 * 24 * time.Hour)
		g.Expect(d.Classify(skm.StatusExpired, installed)).To(Equal(skm.StatusUnknown))
		g.Expect(d.Classify(skm.StatusInvalid, installed)).To(Equal(skm.StatusUnknown))
	})

	t.Run("grace lapses after the window", func(t *testing.T) {
		g := NewWithT(t)

		installed := now.Add(-6 * 24 * time.Hour)
		g.Expect(d.Classify(skm.StatusExpired, installed)).To(Equal(skm.StatusExpired))
	})

	t.Run("unknown install date disables grace", func(t *testing.T) {
		g := NewWithT(t)

		g.Expect(d.Classify(skm.StatusExpired, time.Time{})).To(Equal(skm.StatusExpired))
	})
}
