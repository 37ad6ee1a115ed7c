// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package byteslicereader

import (
	"io"
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("R", func() {
	var r *R

	BeforeEach(func() {
		r = &R{}
	})

	Context("Read", func() {
		Context("with no data", func() {
			It("should read 0 bytes and return EOF", func() {
				buf := make([]byte, 16)
				v, err := r.Read(buf)

				Expect(v).To(Equal(0))
				Expect(err).To(Equal(io.EOF))
			})
		})

		Context("with multiple bytes of data", func() {
			BeforeEach(func() {
				r.Buffer = []byte{0, 1, 2, 3}
			})

			It("reads part of the buffer on first read, remainder on second", func() {
				buf := make([]byte, 3)

				By("reading the first part of the buffer")
				v, err := r.Read(buf)
				Expect(v).To(Equal(3))
				Expect(err).ToNot(HaveOccurred())
				Expect(buf[:v]).To(Equal([]byte{0, 1, 2}))

				By("reading the remainder, returning io.EOF")
				v, err = r.Read(buf)
				Expect(v).To(Equal(1))
				Expect(err).To(Equal(io.EOF))
				Expect(buf[:v]).To(Equal([]byte{3}))

				By("reading again after EOF, returning EOF")
				v, err = r.Read(buf)
				Expect(v).To(Equal(0))
				Expect(err).To(Equal(io.EOF))
			})
		})
	})

	Context("ReadByte", func() {
		Context("with no data", func() {
			It("should return EOF", func() {
				_, err := r.ReadByte()

				Expect(err).To(Equal(io.EOF))
			})
		})

		Context("with data", func() {
			BeforeEach(func() {
				r.Buffer = []byte{0, 1, 2}
			})

			It("should read the data, then return EOF", func() {
				for i := 0; i < 3; i++ {
					v, err := r.ReadByte()
					Expect(err).ToNot(HaveOccurred())
					Expect(v).To(Equal(byte(i)))
				}

				_, err := r.ReadByte()
				Expect(err).To(Equal(io.EOF))
			})
		})
	})

	Context("Next", func() {
		Context("with no data", func() {
			It("asking for bytes should return nothing and ErrUnexpectedEOF", func() {
				buf, err := r.Next(1337)
				Expect(err).To(Equal(io.ErrUnexpectedEOF))
				Expect(buf).To(BeEmpty())
			})
		})

		Context("with multiple bytes of data", func() {
			BeforeEach(func() {
				r.Buffer = []byte{0, 1, 2, 3}
			})

			// Zero-copy, we assert that the returned byte slices ARE the same
			// pointer as the underlying Buffer.
			Context("zero-copy", func() {
				It("asking for 0 should read 0 bytes", func() {
					buf, err := r.Next(0)
					Expect(err).ToNot(HaveOccurred())
					Expect(buf).To(BeEmpty())
				})

				It("asking incrementally will return subslices", func() {
					buf, err := r.Next(2)
					Expect(err).ToNot(HaveOccurred())
					Expect(buf).To(Equal(r.Buffer[0:2]))
					Expect(&buf[0]).To(BeIdenticalTo(&r.Buffer[0]))

					buf, err = r.Next(2)
					Expect(err).ToNot(HaveOccurred())
					Expect(buf).To(Equal(r.Buffer[2:4]))
					Expect(&buf[0]).To(BeIdenticalTo(&r.Buffer[2]))
				})

				It("asking for too many bytes returns the remainder and ErrUnexpectedEOF", func() {
					buf, err := r.Next(1337)
					Expect(err).To(Equal(io.ErrUnexpectedEOF))
					Expect(buf).To(Equal(r.Buffer))
					Expect(&buf[0]).To(BeIdenticalTo(&r.Buffer[0]))
				})
			})

			// Always-copy, we assert that the returned byte slices are NOT the
			// same pointer as the underlying Buffer.
			Context("always-copy", func() {
				BeforeEach(func() {
					r.AlwaysCopy = true
				})

				It("asking incrementally will return copies", func() {
					buf, err := r.Next(2)
					Expect(err).ToNot(HaveOccurred())
					Expect(buf).To(Equal(r.Buffer[0:2]))
					Expect(&buf[0]).ToNot(BeIdenticalTo(&r.Buffer[0]))

					buf, err = r.Next(2)
					Expect(err).ToNot(HaveOccurred())
					Expect(buf).To(Equal(r.Buffer[2:4]))
					Expect(&buf[0]).ToNot(BeIdenticalTo(&r.Buffer[2]))
				})
			})
		})
	})

	Context("Skip", func() {
		BeforeEach(func() {
			r.Buffer = []byte{0, 1, 2, 3}
		})

		It("skips bytes and reads from the new position", func() {
			Expect(r.Skip(2)).To(Succeed())

			b, err := r.ReadByte()
			Expect(err).ToNot(HaveOccurred())
			Expect(b).To(Equal(byte(2)))
		})

		It("skipping past the end exhausts the reader", func() {
			Expect(r.Skip(1337)).To(Equal(io.ErrUnexpectedEOF))
			Expect(r.Remaining()).To(Equal(0))

			_, err := r.ReadByte()
			Expect(err).To(Equal(io.EOF))
		})
	})

	Context("Seek", func() {
		BeforeEach(func() {
			r.Buffer = []byte{0, 1, 2, 3}
		})

		It("seeks from the start and reads from there", func() {
			p, err := r.Seek(2, io.SeekStart)
			Expect(err).ToNot(HaveOccurred())
			Expect(p).To(Equal(int64(2)))

			b, err := r.ReadByte()
			Expect(err).ToNot(HaveOccurred())
			Expect(b).To(Equal(byte(2)))
		})

		It("seeks relative to the current position", func() {
			_, err := r.ReadByte()
			Expect(err).ToNot(HaveOccurred())

			p, err := r.Seek(2, io.SeekCurrent)
			Expect(err).ToNot(HaveOccurred())
			Expect(p).To(Equal(int64(3)))

			b, err := r.ReadByte()
			Expect(err).ToNot(HaveOccurred())
			Expect(b).To(Equal(byte(3)))
		})

		It("seeks relative to the end", func() {
			p, err := r.Seek(-2, io.SeekEnd)
			Expect(err).ToNot(HaveOccurred())
			Expect(p).To(Equal(int64(2)))

			b, err := r.ReadByte()
			Expect(err).ToNot(HaveOccurred())
			Expect(b).To(Equal(byte(2)))
		})

		It("seeking past the end is legal, and reads return EOF", func() {
			p, err := r.Seek(1337, io.SeekStart)
			Expect(err).ToNot(HaveOccurred())
			Expect(p).To(Equal(int64(1337)))

			_, err = r.ReadByte()
			Expect(err).To(Equal(io.EOF))
		})

		It("seeking before the start fails", func() {
			_, err := r.Seek(-1, io.SeekStart)
			Expect(err).To(HaveOccurred())

			_, err = r.Seek(-1337, io.SeekEnd)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("position accounting", func() {
		BeforeEach(func() {
			r.Buffer = []byte{0, 1, 2, 3}
		})

		It("tracks Offset and Remaining through reads", func() {
			Expect(r.Offset()).To(Equal(int64(0)))
			Expect(r.Remaining()).To(Equal(4))

			_, err := r.Next(3)
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Offset()).To(Equal(int64(3)))
			Expect(r.Remaining()).To(Equal(1))
		})
	})

	Context("testing copying", func() {
		BeforeEach(func() {
			r.Buffer = []byte{1, 2, 3, 4}

			_, err := r.Seek(2, io.SeekStart)
			Expect(err).ToNot(HaveOccurred())
		})

		It("maintains state when copied", func() {
			clone := *r

			By("advancing r, to compare")
			b, err := r.ReadByte()
			Expect(err).ToNot(HaveOccurred())
			Expect(b).To(Equal(byte(3)))

			By("checking that clone hasn't moved")
			b, err = clone.ReadByte()
			Expect(err).ToNot(HaveOccurred())
			Expect(b).To(Equal(byte(3)))
		})
	})
})

func TestR(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Testing a byteslicereader.R")
}
