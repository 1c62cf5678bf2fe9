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

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// echoNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	echoNamespace = "echod"

	// 以下为当前使用的通用标签名。
	resultLabelName    = "result"
	reasonLabelName    = "reason"
	transportLabelName = "transport"

	AdmittedLabel = "admitted"
	RejectedLabel = "rejected"

	ClosedByEOF     = "eof"
	ClosedByTimeout = "timeout"
	ClosedByError   = "error"

	TransportTCP = "tcp"
	TransportUDP = "udp"
)

var (
	// sizeBuckets 为单次读写字节数的桶划分，单位为字节。
	sizeBuckets = prometheus.ExponentialBuckets(1, 2, 12)

	TCPSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: echoNamespace,
			Name:      "tcp_sessions_active",
			Help:      "number of tcp echo sessions currently holding an admission slot",
		})

	TCPConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: echoNamespace,
			Name:      "tcp_connections_total",
			Help:      "accepted tcp connections by admission result",
		}, []string{resultLabelName})

	TCPSessionsClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: echoNamespace,
			Name:      "tcp_sessions_closed_total",
			Help:      "closed tcp echo sessions by reason",
		}, []string{reasonLabelName})

	EchoBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: echoNamespace,
			Name:      "echo_bytes_total",
			Help:      "bytes echoed back to peers",
		}, []string{transportLabelName})

	EchoChunkSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: echoNamespace,
			Name:      "echo_chunk_bytes",
			Help:      "size of a single echoed read",
			Buckets:   sizeBuckets,
		}, []string{transportLabelName})

	UDPDatagramsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: echoNamespace,
			Name:      "udp_datagrams_total",
			Help:      "udp datagrams echoed",
		})

	registerOnce     sync.Once
	metricRegisterer prometheus.Registerer
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册当前定义的所有指标，重复调用只生效一次。
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(TCPSessionsActive)
		r.MustRegister(TCPConnectionsTotal)
		r.MustRegister(TCPSessionsClosedTotal)
		r.MustRegister(EchoBytesTotal)
		r.MustRegister(EchoChunkSize)
		r.MustRegister(UDPDatagramsTotal)
		metricRegisterer = r
	})
}

// ObserveEcho 记录一次成功回显的字节数。
func ObserveEcho(transport string, n int) {
	EchoBytesTotal.WithLabelValues(transport).Add(float64(n))
	EchoChunkSize.WithLabelValues(transport).Observe(float64(n))
}
