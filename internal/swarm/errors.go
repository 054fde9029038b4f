package swarm

import "errors"

var (
	ErrNoProxiesAvailable     = errors.New("no working proxies available")
	ErrSizingFailed           = errors.New("could not determine file size, all proxies failed")
	ErrLeaseAcquisitionFailed = errors.New("lease acquisition failed")
	ErrChunkTransportFailed   = errors.New("chunk transport failed")
	ErrRetriesExhausted       = errors.New("chunk retry limit reached")
)
