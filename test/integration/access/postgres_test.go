// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package access_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/warden/internal/access"
	"github.com/holomush/warden/internal/access/accesstest"
	"github.com/holomush/warden/internal/ledger"
	"github.com/holomush/warden/internal/store"
	"github.com/holomush/warden/pkg/errutil"
)

var _ = Describe("Access control on PostgreSQL", func() {
	var (
		st    *store.PostgresStore
		clock *ledger.ManualClock
		sink  *accesstest.RecordingSink
		svc   *access.Service
	)

	BeforeEach(func() {
		env.reset()

		var err error
		st, err = store.NewPostgresStore(env.ctx, env.connStr)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = st.Close() })

		clock = ledger.NewManualClock(accesstest.Start)
		sink = &accesstest.RecordingSink{}
		svc = access.NewService(access.NewController(st, clock, access.WithEventSink(sink)))
	})

	It("persists bindings across controllers", func() {
		Expect(svc.InitAdmin(env.ctx, "alice")).To(Succeed())
		Expect(svc.SetRole(env.ctx, "alice", "PauseAdmin", "carol")).To(Succeed())
		_, err := svc.SetRoleHolders(env.ctx, "alice", "EmergencyPauseAdmin",
			[]access.Identity{"p1", "p2", "p1"})
		Expect(err).NotTo(HaveOccurred())

		fresh := access.NewService(access.NewController(st, clock))

		holder, err := fresh.Role(env.ctx, "PauseAdmin")
		Expect(err).NotTo(HaveOccurred())
		Expect(holder).To(Equal(access.Identity("carol")))

		holders, err := fresh.RoleHolders(env.ctx, "EmergencyPauseAdmin")
		Expect(err).NotTo(HaveOccurred())
		Expect(holders).To(ConsistOf(access.Identity("p1"), access.Identity("p2")))

		ok, err := fresh.HasRole(env.ctx, "alice", "EmergencyPauseAdmin")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("completes a delayed Admin transfer after the deadline", func() {
		Expect(svc.InitAdmin(env.ctx, "alice")).To(Succeed())

		deadline, err := svc.CommitTransfer(env.ctx, "alice", "Admin", "bob")
		Expect(err).NotTo(HaveOccurred())
		Expect(deadline).To(Equal(accesstest.Start + access.TransferDelay))

		_, err = svc.ApplyTransfer(env.ctx, "alice", "Admin")
		errutil.AssertErrorCode(GinkgoT(), err, access.CodeTransferNotReady)

		clock.Set(deadline)
		holder, err := svc.ApplyTransfer(env.ctx, "alice", "Admin")
		Expect(err).NotTo(HaveOccurred())
		Expect(holder).To(Equal(access.Identity("bob")))

		got, err := svc.TransferDeadline(env.ctx, "Admin")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeZero())

		ok, err := svc.HasRole(env.ctx, "alice", "PauseAdmin")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("lets exactly one concurrent InitAdmin win", func() {
		const callers = 16

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners []access.Identity
		)
		for i := range callers {
			wg.Add(1)
			go func(n int) {
				defer GinkgoRecover()
				defer wg.Done()
				id := access.Identity(string(rune('a' + n)))
				if err := svc.InitAdmin(env.ctx, id); err == nil {
					mu.Lock()
					winners = append(winners, id)
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		Expect(winners).To(HaveLen(1))
		admin, err := svc.Role(env.ctx, "Admin")
		Expect(err).NotTo(HaveOccurred())
		Expect(admin).To(Equal(winners[0]))
		Expect(sink.Types()).To(ContainElement(access.EventAdminInitialized))
	})

	It("rolls back every write of a failed operation", func() {
		Expect(svc.InitAdmin(env.ctx, "alice")).To(Succeed())
		sink.Reset()

		err := svc.SetRole(env.ctx, "mallory", "RewardsAdmin", "mallory")
		errutil.AssertErrorCode(GinkgoT(), err, access.CodeUnauthorized)

		_, err = svc.Role(env.ctx, "RewardsAdmin")
		errutil.AssertErrorCode(GinkgoT(), err, access.CodeRoleUnset)
		Expect(sink.Events()).To(BeEmpty())
	})
})
