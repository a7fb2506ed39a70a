package domain

// Recipient is a single SMS destination. For bulk sends it is usually a
// student's guardian contact.
type Recipient struct {
	StudentID string `json:"student_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Phone     string `json:"phone"`
}

// Batch is a group of recipients combined into a single gateway request.
type Batch struct {
	Index      int         `json:"index"`
	Recipients []Recipient `json:"recipients"`
}

// Partition splits recipients into consecutive batches of at most size
// elements. The order of recipients is preserved and nothing is duplicated or
// dropped. A non-positive size yields a single batch.
func Partition(recipients []Recipient, size int) []Batch {
	if len(recipients) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(recipients)
	}

	batches := make([]Batch, 0, (len(recipients)+size-1)/size)
	for start := 0; start < len(recipients); start += size {
		end := start + size
		if end > len(recipients) {
			end = len(recipients)
		}
		chunk := make([]Recipient, end-start)
		copy(chunk, recipients[start:end])
		batches = append(batches, Batch{Index: len(batches), Recipients: chunk})
	}
	return batches
}

// Phones returns the normalized phone numbers of the batch in order.
// Recipients whose number normalizes to "" are left out.
func (b Batch) Phones() []string {
	out := make([]string, 0, len(b.Recipients))
	for _, r := range b.Recipients {
		if p := NormalizePhone(r.Phone); p != "" {
			out = append(out, p)
		}
	}
	return out
}
