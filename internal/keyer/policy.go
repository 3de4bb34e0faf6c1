package keyer

// remember stores a press in the variant's paddle memory, if it has one.
func (k *Keyer) remember(p Paddle, pressed bool) {
	if !pressed {
		return
	}
	switch k.kind {
	case KindUltimatic, KindIambicB:
		k.queue.Add(p)
	case KindSingleDot, KindIambicA:
		if p == Dit {
			k.queue.Add(p)
		}
	case KindKeyahead:
		k.ahead.push(p)
	}
}

// repeatKey is the electronic bug edge handler shared by every
// self-completing keyer except the bug: a press becomes the repeating
// paddle, a release falls back to whichever paddle is still held.
func (k *Keyer) repeatKey(p Paddle, pressed bool) {
	k.keyPressed[p] = pressed
	if pressed {
		k.nextRepeat = p
		k.arm()
		return
	}
	k.nextRepeat = k.heldPaddle()
}

// heldPaddle returns the first held paddle, Dit first, or None.
func (k *Keyer) heldPaddle() Paddle {
	for i, held := range k.keyPressed {
		if held {
			return Paddle(i)
		}
	}
	return None
}

func (k *Keyer) squeezed() bool {
	return k.keyPressed[Dit] && k.keyPressed[Dah]
}

// nextTx picks the paddle to send next, or None to go idle.
func (k *Keyer) nextTx() Paddle {
	switch k.kind {
	case KindBug:
		if k.keyPressed[Dit] {
			return Dit
		}
		return None

	case KindElectronicBug:
		return k.repeatTx()

	case KindUltimatic:
		if p := k.queue.Shift(); p != None {
			return p
		}
		return k.repeatTx()

	case KindSingleDot:
		if p := k.queue.Shift(); p != None {
			return p
		}
		if k.keyPressed[Dah] {
			return Dah
		}
		if k.keyPressed[Dit] {
			return Dit
		}
		return None

	case KindIambic:
		return k.iambicTx()

	case KindIambicA:
		// The iambic step runs first so the alternation advances even
		// when a remembered dit takes its place.
		next := k.iambicTx()
		if p := k.queue.Shift(); p != None {
			return p
		}
		return next

	case KindIambicB:
		for p := Dit; p <= Dah; p++ {
			if k.keyPressed[p] {
				k.queue.Add(p)
			}
		}
		return k.queue.Shift()

	case KindKeyahead:
		if p := k.ahead.shift(); p != None {
			return p
		}
		return k.repeatTx()
	}
	return None
}

// repeatTx is the electronic bug policy: repeat the last pressed paddle
// while anything is held.
func (k *Keyer) repeatTx() Paddle {
	if k.heldPaddle() == None {
		return None
	}
	return k.nextRepeat
}

// iambicTx is the electronic bug policy with squeeze alternation.
func (k *Keyer) iambicTx() Paddle {
	next := k.repeatTx()
	if k.squeezed() && k.nextRepeat != None {
		k.nextRepeat = 1 - k.nextRepeat
	}
	return next
}
