// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conc

import (
	"github.com/cockroachdb/errors"
	ants "github.com/panjf2000/ants/v2"
)

// ErrPoolClosed 表示协程池已经被释放。
var ErrPoolClosed = ants.ErrPoolClosed

// Pool 是对 ants.Pool 的封装，每个提交的任务在独立的 worker 协程中执行。
type Pool struct {
	inner      *ants.Pool
	preHandler func()
}

// NewPool 创建一个容量为 cap 的协程池，cap <= 0 表示不限容量。
func NewPool(cap int, opts ...PoolOption) (*Pool, error) {
	opt := defaultPoolOption()
	for _, o := range opts {
		o(opt)
	}

	if cap <= 0 {
		cap = -1
	}
	inner, err := ants.NewPool(cap, opt.antsOptions()...)
	if err != nil {
		return nil, errors.Wrap(err, "conc: create pool")
	}
	return &Pool{
		inner:      inner,
		preHandler: opt.preHandler,
	}, nil
}

// Submit 将任务提交到池中执行。
// 非阻塞模式下池满时返回 ants.ErrPoolOverload。
func (pool *Pool) Submit(task func()) error {
	return pool.inner.Submit(func() {
		if pool.preHandler != nil {
			pool.preHandler()
		}
		task()
	})
}

// Release 释放协程池，不等待正在执行的任务结束。
func (pool *Pool) Release() {
	pool.inner.Release()
}

