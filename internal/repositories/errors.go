package repositories

import "errors"

// ErrRequestDoesNotExist error
var ErrRequestDoesNotExist = errors.New("verification request not found")

// ErrRequestAlreadyExists error
var ErrRequestAlreadyExists = errors.New("verification request already exists")

// ErrAttestationDoesNotExist error
var ErrAttestationDoesNotExist = errors.New("attestation record not found")

// ErrAttestationAlreadyExists error
var ErrAttestationAlreadyExists = errors.New("attestation record already exists")

// ErrParticipantDoesNotExist error
var ErrParticipantDoesNotExist = errors.New("oracle participant not found")

// ErrCertificateDoesNotExist error
var ErrCertificateDoesNotExist = errors.New("certificate not found")

// ErrCertificateAlreadyExists error
var ErrCertificateAlreadyExists = errors.New("certificate already exists for request")
