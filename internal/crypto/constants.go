package crypto

const (
	HashSize                  = 32
	BandersnatchSize          = 32
	BandersnatchSignatureSize = 96
	Ed25519PublicSize         = 32
	Ed25519SignatureSize      = 64
	BLSSize                   = 144
	BandersnatchRingSize      = 144
	RingVrfSignatureSize      = 784
	MetadataSize              = 128
	ValidatorKeySize          = BandersnatchSize + Ed25519PublicSize + BLSSize + MetadataSize
)
