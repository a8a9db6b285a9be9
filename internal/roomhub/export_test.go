package roomhub

var ErrorCode = errorCode
