package idp

//go:generate mockgen -package mock -destination ./mock/storage.mock.go github.com/ssokit/idp/pkg/idp Storage
//go:generate mockgen -package mock -destination ./mock/codec.mock.go github.com/ssokit/idp/pkg/idp/session MessageCodec,MetadataProvider,CredentialVerifier
//go:generate mockgen -package mock -destination ./mock/store.mock.go github.com/ssokit/idp/pkg/idp/flow ContinuationStore
