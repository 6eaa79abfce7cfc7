package kvstore

import "errors"

// errWrongType signals that a command's target key exists but holds a
// value of the wrong kind (e.g. GET on a ZSET key). Translated to
// ERR(TYPE) at the dispatcher boundary (spec §4.8).
var errWrongType = errors.New("kvstore: wrong type for key")
