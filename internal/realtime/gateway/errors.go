package gateway

import "errors"

var errFirstFrameNotConnect = errors.New("first frame must be a connect event")
