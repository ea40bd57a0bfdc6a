package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"pocketsync/internal/common"
)

// SignUp interactively creates an account and, like the signup screen,
// offers the login path when the email is already registered.
func (a *App) SignUp(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Enter your name", os.Stdout)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.reader, "Enter your email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := GetPassword("Enter password: ", os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)
	confirm, err := GetPassword("Confirm password: ", os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	id, err := a.authService.SignUp(ctx, name, email, string(password), string(confirm))
	if err != nil {
		if errors.Is(err, common.ErrorEmailTaken) {
			printlnFn("This email is already registered. Use 'login' instead.")
			return err
		}
		printlnFn(fmt.Sprintf("Signup failed: %v", err))
		return err
	}

	printlnFn(fmt.Sprintf("Account created (id %s). Use 'login' to sign in.", id))
	return nil
}

// Login authenticates, installs the session and arms the sync scheduler.
func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Enter your email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := GetPassword("Enter password: ", os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.LogIn(ctx, email, string(password)); err != nil {
		printlnFn(fmt.Sprintf("Login failed: %v", err))
		return err
	}

	a.scheduler.Start(ctx)
	printlnFn("Logged in.")
	return nil
}

// Logout clears the session and stops the background scheduler. The local
// account data stays on the device.
func (a *App) Logout(ctx context.Context) error {
	a.scheduler.Stop()
	if err := a.authService.LogOut(ctx); err != nil {
		printlnFn(fmt.Sprintf("Logout failed: %v", err))
		return err
	}
	printlnFn("Logged out.")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	s := a.session.Current()
	if s == nil {
		printlnFn("Not logged in.")
		return nil
	}
	printlnFn(fmt.Sprintf("%s <%s>, logged in at %s", s.Name, s.Email, s.LoginTime.Format("2006-01-02 15:04")))
	return nil
}

func (a *App) Rename(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Enter new name", os.Stdout)
	if err != nil {
		return err
	}
	if err := a.profileService.Rename(ctx, name); err != nil {
		printlnFn(fmt.Sprintf("Rename failed: %v", err))
		return err
	}
	printlnFn("Name updated. It will reach your other devices on the next sync.")
	return nil
}

func (a *App) Avatar(ctx context.Context) error {
	path, err := GetSimpleText(a.reader, "Path to avatar image", os.Stdout)
	if err != nil {
		return err
	}
	key, err := a.profileService.UploadAvatar(ctx, path)
	if err != nil {
		printlnFn(fmt.Sprintf("Upload failed: %v", err))
		return err
	}
	printlnFn(fmt.Sprintf("Avatar uploaded (%s).", key))
	return nil
}

// Sync runs one manual reconciliation pass. Unlike the background trigger,
// a manual trigger reports failures to the user as retryable.
func (a *App) Sync(ctx context.Context) error {
	if err := a.driver.CheckAndSync(ctx); err != nil {
		printlnFn(fmt.Sprintf("Sync failed, try again later: %v", err))
		return err
	}
	printlnFn("Sync finished.")
	return nil
}
