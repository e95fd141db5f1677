/*
 * BGP speaker core. Copyright (C) 2021-present David Coles
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package apisup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChildEchoesStdinOnStdout(t *testing.T) {
	c := NewChild("peer1", []string{"cat"}, false, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.Run(ctx)
	c.Send([]byte(`{"type":"announce","prefix":"10.0.0.0/24"}`))

	select {
	case ev := <-c.Events():
		require.Equal(t, "peer1", ev.Neighbor)
		require.Equal(t, "announce", ev.Kind)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for child to echo its stdin")
	}
	c.Stop()
}

func TestChildReportsErrorOnBadCommand(t *testing.T) {
	c := NewChild("peer2", []string{"/nonexistent/path/to/nothing"}, false, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.Run(ctx)

	select {
	case err := <-c.Errors():
		require.Error(t, err)
		require.Equal(t, "peer2", err.Neighbor)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for child start failure")
	}
}

func TestSendDropsOldestWhenBacklogFull(t *testing.T) {
	c := NewChild("peer3", []string{"sleep", "5"}, false, nil)
	for i := 0; i < maxStdinBacklog+10; i++ {
		c.Send([]byte("line"))
	}
	require.Len(t, c.backlog, maxStdinBacklog)
}
