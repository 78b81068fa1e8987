package mozclone

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// readAlignedBytes reads a DOM-type length-prefixed byte run: a u32
// codepoint/byte count, aligned up to 8, then that many bytes, then
// realigned.
func (d *decoder) readAlignedBytes() ([]byte, error) {
	length, err := d.r.Uint32(binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	if err := d.alignPair(); err != nil {
		return nil, err
	}
	raw, err := d.r.ReadRaw(int(length))
	if err != nil {
		return nil, err
	}
	if err := d.alignPair(); err != nil {
		return nil, err
	}
	return raw, nil
}

// readAlignedUTF8 reads a DOM-type aligned string whose bytes are UTF-8
// (the mimetype and file-name fields Blob/File carry).
func (d *decoder) readAlignedUTF8() (string, error) {
	raw, err := d.readAlignedBytes()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// readAlignedUTF16 reads a DOM-type aligned string whose length is in
// UTF-16 codepoints (the algorithm-name field CryptoKey carries).
func (d *decoder) readAlignedUTF16() (string, error) {
	codepoints, err := d.r.Uint32(binary.LittleEndian)
	if err != nil {
		return "", err
	}
	if err := d.alignPair(); err != nil {
		return "", err
	}
	raw, err := d.r.ReadRaw(int(codepoints) * 2)
	if err != nil {
		return "", err
	}
	if err := d.alignPair(); err != nil {
		return "", err
	}
	utf16Reader := transform.NewReader(newByteReader(raw), unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder())
	decoded, err := io.ReadAll(utf16Reader)
	if err != nil {
		return "", fmt.Errorf("decoding UTF-16 DOM string: %w", err)
	}
	return string(decoded), nil
}

// readBlob decodes a DOM_BLOB pair: data is the blob's external file index;
// the stream continues with a u64 size and an aligned UTF-8 mimetype.
func (d *decoder) readBlob(externalRef uint32) (Value, error) {
	size, err := d.r.Uint64(binary.LittleEndian)
	if err != nil {
		return Value{}, fmt.Errorf("reading blob size: %w", err)
	}
	if err := d.alignPair(); err != nil {
		return Value{}, err
	}
	mimeType, err := d.readAlignedUTF8()
	if err != nil {
		return Value{}, fmt.Errorf("reading blob mimetype: %w", err)
	}

	v := Value{Kind: KindBlob, Blob: Blob{Size: size, MIMEType: mimeType, ExternalRef: externalRef}}
	d.flatten(&v)
	return v, nil
}

// readFile decodes a DOM_FILE or DOM_FILE_WITHOUT_LASTMODIFIEDDATE pair:
// size and mimetype as for Blob, then (DOM_FILE only) a last-modified
// double, then an aligned UTF-8 name.
func (d *decoder) readFile(tag Tag, externalRef uint32) (Value, error) {
	size, err := d.r.Uint64(binary.LittleEndian)
	if err != nil {
		return Value{}, fmt.Errorf("reading file size: %w", err)
	}
	if err := d.alignPair(); err != nil {
		return Value{}, err
	}
	mimeType, err := d.readAlignedUTF8()
	if err != nil {
		return Value{}, fmt.Errorf("reading file mimetype: %w", err)
	}

	f := File{Blob: Blob{Size: size, MIMEType: mimeType, ExternalRef: externalRef}}
	if tag == TagDOMFile {
		ms, err := d.readDouble()
		if err != nil {
			return Value{}, fmt.Errorf("reading file last-modified time: %w", err)
		}
		f.LastModified = epochMillis(ms)
		f.HasLastModified = true
	}

	name, err := d.readAlignedUTF8()
	if err != nil {
		return Value{}, fmt.Errorf("reading file name: %w", err)
	}
	f.Name = name

	v := Value{Kind: KindFile, File: f}
	d.flatten(&v)
	return v, nil
}

// CryptoKey algorithm enum values, per the proxy algorithm structure
// dom/crypto/CryptoKey.cpp serializes.
const (
	cryptoAlgAES uint32 = iota
	cryptoAlgHMAC
	cryptoAlgRSA
	cryptoAlgEC
	cryptoAlgKDF
	cryptoAlgED
)

// readCryptoKey decodes a DOM_CRYPTOKEY pair: version/flags, three
// length-prefixed key-material blocks (symmetric, private, public), an
// aligned UTF-16 algorithm name, then a per-algorithm-family payload
// selected by a proxy version and algorithm enum.
func (d *decoder) readCryptoKey() (Value, error) {
	version, err := d.r.Uint32(binary.LittleEndian)
	if err != nil {
		return Value{}, fmt.Errorf("reading cryptokey version: %w", err)
	}
	if version != 1 {
		return Value{}, fmt.Errorf("unsupported cryptokey version %d", version)
	}
	attrFlags, err := d.r.Uint32(binary.LittleEndian)
	if err != nil {
		return Value{}, fmt.Errorf("reading cryptokey attribute flags: %w", err)
	}

	symmetric, err := d.readCryptoKeyMaterial()
	if err != nil {
		return Value{}, fmt.Errorf("reading symmetric key material: %w", err)
	}
	private, err := d.readCryptoKeyMaterial()
	if err != nil {
		return Value{}, fmt.Errorf("reading private key material: %w", err)
	}
	public, err := d.readCryptoKeyMaterial()
	if err != nil {
		return Value{}, fmt.Errorf("reading public key material: %w", err)
	}

	algName, err := d.readAlignedUTF16()
	if err != nil {
		return Value{}, fmt.Errorf("reading cryptokey algorithm name: %w", err)
	}

	proxyVersion, err := d.r.Uint32(binary.LittleEndian)
	if err != nil {
		return Value{}, fmt.Errorf("reading cryptokey proxy version: %w", err)
	}
	if proxyVersion != 1 {
		return Value{}, fmt.Errorf("unsupported cryptokey proxy version %d", proxyVersion)
	}
	algEnum, err := d.r.Uint32(binary.LittleEndian)
	if err != nil {
		return Value{}, fmt.Errorf("reading cryptokey algorithm enum: %w", err)
	}

	algorithm, err := d.readCryptoKeyAlgorithm(algEnum)
	if err != nil {
		return Value{}, fmt.Errorf("reading cryptokey algorithm payload: %w", err)
	}

	v := Value{
		Kind: KindCryptoKey,
		CryptoKey: CryptoKey{
			AttributeFlags: attrFlags,
			SymmetricKey:   symmetric,
			PrivateKey:     private,
			PublicKey:      public,
			AlgorithmName:  algName,
			Algorithm:      algorithm,
		},
	}
	d.flatten(&v)
	return v, nil
}

// readCryptoKeyMaterial reads one (unused:u32, length:u32) group followed
// by length raw bytes, aligning afterward.
func (d *decoder) readCryptoKeyMaterial() ([]byte, error) {
	if _, err := d.r.Uint32(binary.LittleEndian); err != nil { // unused
		return nil, err
	}
	length, err := d.r.Uint32(binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	raw, err := d.r.ReadRaw(int(length))
	if err != nil {
		return nil, err
	}
	if err := d.alignPair(); err != nil {
		return nil, err
	}
	return raw, nil
}

func (d *decoder) readCryptoKeyAlgorithm(algEnum uint32) (CryptoKeyAlgorithm, error) {
	switch algEnum {
	case cryptoAlgAES:
		length, err := d.r.Uint32(binary.LittleEndian)
		if err != nil {
			return CryptoKeyAlgorithm{}, err
		}
		return CryptoKeyAlgorithm{Kind: "aes", Length: length}, nil
	case cryptoAlgKDF:
		return CryptoKeyAlgorithm{Kind: "kdf"}, nil
	case cryptoAlgHMAC:
		length, err := d.r.Uint32(binary.LittleEndian)
		if err != nil {
			return CryptoKeyAlgorithm{}, err
		}
		hash, err := d.readAlignedUTF16()
		if err != nil {
			return CryptoKeyAlgorithm{}, err
		}
		return CryptoKeyAlgorithm{Kind: "hmac", Length: length, Hash: hash}, nil
	case cryptoAlgRSA:
		modulusLength, err := d.r.Uint32(binary.LittleEndian)
		if err != nil {
			return CryptoKeyAlgorithm{}, err
		}
		publicExponent, err := d.readAlignedBytes()
		if err != nil {
			return CryptoKeyAlgorithm{}, err
		}
		hash, err := d.readAlignedUTF16()
		if err != nil {
			return CryptoKeyAlgorithm{}, err
		}
		return CryptoKeyAlgorithm{Kind: "rsa", ModulusLength: modulusLength, PublicExponent: publicExponent, Hash: hash}, nil
	case cryptoAlgEC:
		namedCurve, err := d.readAlignedUTF16()
		if err != nil {
			return CryptoKeyAlgorithm{}, err
		}
		return CryptoKeyAlgorithm{Kind: "ec", NamedCurve: namedCurve}, nil
	case cryptoAlgED:
		return CryptoKeyAlgorithm{Kind: "ed"}, nil
	default:
		return CryptoKeyAlgorithm{}, fmt.Errorf("unsupported cryptokey algorithm enum %d", algEnum)
	}
}
